package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the machine ID so it doesn't leak the raw system ID.
const AppID = "nfcreg"

// MachineID retrieves an ID identifying this machine for nfcreg. It
// falls back to the hostname when the system provides no machine ID.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "unknown"
}
