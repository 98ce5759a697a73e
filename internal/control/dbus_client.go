package control

import (
	"github.com/godbus/dbus/v5"
)

// DBusClient defines the D-Bus operations the MPRIS service needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/vidcore/internal/control DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Export publishes the exported methods of v as iface on path
	Export(v any, path dbus.ObjectPath, iface string) error

	// RequestName claims a well-known bus name
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)

	// ReleaseName gives up a well-known bus name
	ReleaseName(name string) (dbus.ReleaseNameReply, error)

	// Emit broadcasts a signal from path
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (DBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

func (c *StdDBusClient) Export(v any, path dbus.ObjectPath, iface string) error {
	return c.conn.Export(v, path, iface)
}

func (c *StdDBusClient) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return c.conn.RequestName(name, flags)
}

func (c *StdDBusClient) ReleaseName(name string) (dbus.ReleaseNameReply, error) {
	return c.conn.ReleaseName(name)
}

func (c *StdDBusClient) Emit(path dbus.ObjectPath, name string, values ...any) error {
	return c.conn.Emit(path, name, values...)
}
