// Package session implements Session Discovery (spec.md §4.6): mapping a
// uid to a live graphical session descriptor, cached per-uid for the
// current sweep interval.
package session

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// Kind is the session's display protocol (spec.md §3).
type Kind int

const (
	KindUnknown Kind = iota
	KindX11
	KindWayland
)

// UserSession is the result of a successful discovery (spec.md §3).
type UserSession struct {
	UID         uint32
	Username    string
	Display     string // empty if not determined
	DBusAddress string
	Kind        Kind
}

const (
	login1BusName   = "org.freedesktop.login1"
	login1Path      = "/org/freedesktop/login1"
	login1Manager   = "org.freedesktop.login1.Manager"
	login1Session   = "org.freedesktop.login1.Session"
	propertiesIface = "org.freedesktop.DBus.Properties"
)

// loginSession mirrors one row of org.freedesktop.login1.Manager.ListSessions.
type loginSession struct {
	ID   string
	UID  uint32
	User string
	Seat string
	Path dbus.ObjectPath
}

// Discovery caches UserSession lookups by uid. Not safe for concurrent use;
// it is exclusively owned by the Event Processor, same as Tracker.
type Discovery struct {
	log      *logrus.Logger
	sessions map[uint32]UserSession
	systemBus func() (*dbus.Conn, error)
}

// New returns a Discovery instance. log may be nil (defaults to a
// standalone logger).
func New(log *logrus.Logger) *Discovery {
	if log == nil {
		log = logrus.New()
	}
	return &Discovery{
		log:       log,
		sessions:  make(map[uint32]UserSession),
		systemBus: dbus.SystemBus,
	}
}

// GetSession returns the cached or freshly discovered session for uid.
// Returns false only if the username cannot be resolved or a fatal lookup
// error occurs (spec.md §4.6); absence of a display is not fatal.
func (d *Discovery) GetSession(uid uint32) (UserSession, bool) {
	if s, ok := d.sessions[uid]; ok {
		return s, true
	}

	s, err := d.discover(uid)
	if err != nil {
		d.log.WithField("uid", uid).WithError(err).Debug("session discovery failed")
		return UserSession{}, false
	}

	d.sessions[uid] = s
	return s, true
}

// ClearCache flushes all cached sessions (spec.md §4.8, hourly cleanup).
func (d *Discovery) ClearCache() {
	d.sessions = make(map[uint32]UserSession)
}

func (d *Discovery) discover(uid uint32) (UserSession, error) {
	username, err := usernameForUID(uid)
	if err != nil {
		return UserSession{}, fmt.Errorf("session: resolve username: %w", err)
	}

	s := UserSession{
		UID:         uid,
		Username:    username,
		DBusAddress: fmt.Sprintf("unix:path=/run/user/%d/bus", uid),
		Kind:        KindUnknown,
	}

	kind := d.detectKind(uid)
	s.Kind = kind

	switch kind {
	case KindX11:
		s.Display = displayForUser(uid, username)
	case KindWayland:
		s.Display = filepath.Join(fmt.Sprintf("/run/user/%d", uid), "wayland-0")
	}

	return s, nil
}

// detectKind enumerates logind sessions over the system bus and reads the
// matching session's Type property (spec.md §4.6 step 3). Any dbus failure
// degrades to KindUnknown rather than failing discovery outright: absence
// of a display never aborts the Notifier's D-Bus-only path.
func (d *Discovery) detectKind(uid uint32) Kind {
	conn, err := d.systemBus()
	if err != nil {
		d.log.WithError(err).Debug("session: connect to system bus")
		return KindUnknown
	}
	defer conn.Close()

	manager := conn.Object(login1BusName, dbus.ObjectPath(login1Path))

	var raw [][]interface{}
	if err := manager.Call(login1Manager+".ListSessions", 0).Store(&raw); err != nil {
		d.log.WithError(err).Debug("session: ListSessions")
		return KindUnknown
	}

	for _, row := range raw {
		ls, err := parseLoginSession(row)
		if err != nil || ls.UID != uid {
			continue
		}

		sessionObj := conn.Object(login1BusName, ls.Path)
		variant, err := sessionObj.GetProperty(propertiesIface + "." + login1Session + ".Type")
		if err != nil {
			// Some implementations expose properties without the interface
			// prefix in the member name; retry via the canonical Get call.
			var v dbus.Variant
			callErr := sessionObj.Call(propertiesIface+".Get", 0, login1Session, "Type").Store(&v)
			if callErr != nil {
				return KindUnknown
			}
			variant = v
		}

		switch strings.ToLower(fmt.Sprintf("%v", variant.Value())) {
		case "x11":
			return KindX11
		case "wayland":
			return KindWayland
		default:
			return KindUnknown
		}
	}

	return KindUnknown
}

func parseLoginSession(row []interface{}) (loginSession, error) {
	if len(row) < 5 {
		return loginSession{}, fmt.Errorf("session: unexpected ListSessions row shape")
	}

	id, _ := row[0].(string)
	uid, _ := row[1].(uint32)
	user, _ := row[2].(string)
	seat, _ := row[3].(string)
	path, _ := row[4].(dbus.ObjectPath)

	return loginSession{ID: id, UID: uid, User: user, Seat: seat, Path: path}, nil
}

// displayForUser guesses the X11 DISPLAY value (spec.md §4.6 step 4, §9
// open question: this is a heuristic, not a contract). Prefers ":0" if a
// well-known auth file exists under the runtime directory or home; falls
// back to ":0" regardless.
func displayForUser(uid uint32, username string) string {
	candidates := []string{
		filepath.Join(fmt.Sprintf("/run/user/%d", uid), "gdm", "Xauthority"),
		filepath.Join("/home", username, ".Xauthority"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return ":0"
		}
	}
	return ":0"
}

func usernameForUID(uid uint32) (string, error) {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return "", fmt.Errorf("session: open /etc/passwd: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 3 {
			continue
		}
		entryUID, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		if uint32(entryUID) == uid {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("session: scan /etc/passwd: %w", err)
	}

	return "", fmt.Errorf("session: no passwd entry for uid %d", uid)
}
