package session

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsernameForUIDParsesPasswdFormat(t *testing.T) {
	t.Parallel()
	// root is always uid 0 on any Linux system this daemon targets.
	name, err := usernameForUID(0)
	require.NoError(t, err)
	assert.Equal(t, "root", name)
}

func TestUsernameForUIDUnknownReturnsError(t *testing.T) {
	t.Parallel()
	_, err := usernameForUID(4294967295)
	assert.Error(t, err)
}

func TestParseLoginSessionRejectsShortRows(t *testing.T) {
	_, err := parseLoginSession([]interface{}{"1", uint32(1000)})
	assert.Error(t, err)
}

func TestParseLoginSessionExtractsFields(t *testing.T) {
	row := []interface{}{"c1", uint32(1000), "alice", "seat0", dbus.ObjectPath("/org/freedesktop/login1/session/_31")}
	ls, err := parseLoginSession(row)
	require.NoError(t, err)
	assert.Equal(t, "c1", ls.ID)
	assert.Equal(t, uint32(1000), ls.UID)
	assert.Equal(t, "alice", ls.User)
	assert.Equal(t, "seat0", ls.Seat)
}

func TestDisplayForUserDefaultsToZero(t *testing.T) {
	assert.Equal(t, ":0", displayForUser(1000, "nobody-in-particular"))
}

func TestClearCacheEmptiesSessions(t *testing.T) {
	d := New(nil)
	d.sessions[1000] = UserSession{UID: 1000, Username: "alice"}
	require.Len(t, d.sessions, 1)

	d.ClearCache()

	assert.Empty(t, d.sessions)
}

func TestGetSessionCachesResult(t *testing.T) {
	d := New(nil)
	want := UserSession{UID: 1000, Username: "cached"}
	d.sessions[1000] = want

	got, ok := d.GetSession(1000)

	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDetectKindDegradesToUnknownWhenBusUnavailable(t *testing.T) {
	d := New(nil)
	d.systemBus = func() (*dbus.Conn, error) {
		return nil, assertErr
	}

	assert.Equal(t, KindUnknown, d.detectKind(1000))
}

var assertErr = assertError("system bus unavailable in test sandbox")

type assertError string

func (e assertError) Error() string { return string(e) }
