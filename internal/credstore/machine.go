package credstore

import (
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"
)

const appSalt = "social-agent/credstore/v1"

// scrypt cost parameters. Deriving takes a noticeable fraction of a second,
// which is why the key is computed once per process.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	machineKeyOnce sync.Once
	machineKey     []byte
	machineKeyErr  error
)

// MachineKey derives the process-wide encryption key from the host fingerprint.
func MachineKey() ([]byte, error) {
	machineKeyOnce.Do(func() {
		machineKey, machineKeyErr = DeriveKey(Fingerprint(currentSignals(), time.Now()))
	})
	return machineKey, machineKeyErr
}

// DeriveKey stretches a fingerprint into a 32 byte key.
func DeriveKey(fingerprint string) ([]byte, error) {
	return scrypt.Key([]byte(fingerprint), []byte(appSalt), scryptN, scryptR, scryptP, 32)
}

// Signals are the host characteristics a key is bound to.
type Signals struct {
	Hostname string
	OS       string
	Arch     string
	MAC      string
}

// Fingerprint joins the signals, replacing any missing one with a value scoped
// to the current UTC date so a key can always be derived.
func Fingerprint(sig Signals, now time.Time) string {
	fallback := "unknown-" + now.UTC().Format("2006-01-02")
	parts := []string{sig.Hostname, sig.OS, sig.Arch, sig.MAC}
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			parts[i] = fallback
		}
	}
	return strings.Join(parts, "|")
}

func currentSignals() Signals {
	hostname, _ := os.Hostname()
	return Signals{
		Hostname: hostname,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		MAC:      primaryMAC(),
	}
}

// primaryMAC returns the hardware address of the first up, non-loopback interface.
func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}
