// Package env provides configuration shared by the binaries.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID keys the protected machine ID so the node ID does not expose
// the raw machine ID.
const AppID = "tvc"

// MachineID retrieves an ID unique to the machine, falling back to the
// hostname.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

// Getenv returns the value of the environment variable TVC_<name>.
func Getenv(name string) string {
	return os.Getenv("TVC_" + name)
}
