//go:build linux

package vault

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// secretServiceKeyring stores the master key in the freedesktop Secret
// Service (GNOME Keyring, KWallet) over the session bus.
type secretServiceKeyring struct{}

// SystemKeyring returns the platform credential store. dataDir is
// unused on Linux.
func SystemKeyring(dataDir string) Keyring {
	return &secretServiceKeyring{}
}

const (
	ssDest       = "org.freedesktop.secrets"
	ssPath       = dbus.ObjectPath("/org/freedesktop/secrets")
	ssService    = "org.freedesktop.Secret.Service"
	ssCollection = "org.freedesktop.Secret.Collection"
	ssItem       = "org.freedesktop.Secret.Item"
)

// ssSecret mirrors the Secret Service (session, parameters, value,
// content_type) struct.
type ssSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

func (k *secretServiceKeyring) open() (*dbus.Conn, dbus.BusObject, dbus.ObjectPath, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, nil, "", fmt.Errorf("session bus: %w", err)
	}

	svc := conn.Object(ssDest, ssPath)

	var discard dbus.Variant
	var session dbus.ObjectPath
	if err := svc.Call(ssService+".OpenSession", 0, "plain", dbus.MakeVariant("")).Store(&discard, &session); err != nil {
		return nil, nil, "", fmt.Errorf("open secret session: %w", err)
	}
	return conn, svc, session, nil
}

func (k *secretServiceKeyring) defaultCollection(conn *dbus.Conn, svc dbus.BusObject) (dbus.BusObject, error) {
	var path dbus.ObjectPath
	if err := svc.Call(ssService+".ReadAlias", 0, "default").Store(&path); err != nil {
		return nil, fmt.Errorf("read default collection: %w", err)
	}
	if path == "/" {
		return nil, fmt.Errorf("no default secret collection")
	}

	// Unlock is a no-op for already-unlocked collections.
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := svc.Call(ssService+".Unlock", 0, []dbus.ObjectPath{path}).Store(&unlocked, &prompt); err != nil {
		return nil, fmt.Errorf("unlock collection: %w", err)
	}

	return conn.Object(ssDest, path), nil
}

func attributes(service, account string) map[string]string {
	return map[string]string{"service": service, "account": account}
}

func (k *secretServiceKeyring) Load(service, account string) ([]byte, error) {
	conn, svc, session, err := k.open()
	if err != nil {
		return nil, err
	}

	coll, err := k.defaultCollection(conn, svc)
	if err != nil {
		return nil, err
	}

	var paths []dbus.ObjectPath
	if err := coll.Call(ssCollection+".SearchItems", 0, attributes(service, account)).Store(&paths); err != nil {
		return nil, fmt.Errorf("search secret items: %w", err)
	}
	if len(paths) == 0 {
		return nil, ErrKeyNotFound
	}

	var secret ssSecret
	item := conn.Object(ssDest, paths[0])
	if err := item.Call(ssItem+".GetSecret", 0, session).Store(&secret); err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return secret.Value, nil
}

func (k *secretServiceKeyring) Store(service, account string, value []byte) error {
	conn, svc, session, err := k.open()
	if err != nil {
		return err
	}

	coll, err := k.defaultCollection(conn, svc)
	if err != nil {
		return err
	}

	props := map[string]dbus.Variant{
		ssItem + ".Label":      dbus.MakeVariant(service + "/" + account),
		ssItem + ".Attributes": dbus.MakeVariant(attributes(service, account)),
	}
	secret := ssSecret{
		Session:     session,
		Value:       value,
		ContentType: "application/octet-stream",
	}

	var itemPath, prompt dbus.ObjectPath
	if err := coll.Call(ssCollection+".CreateItem", 0, props, secret, true).Store(&itemPath, &prompt); err != nil {
		return fmt.Errorf("create secret item: %w", err)
	}
	return nil
}
