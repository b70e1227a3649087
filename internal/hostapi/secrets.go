package hostapi

import (
	"errors"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strings"
)

// securityItemNotFound is the exit status of /usr/bin/security when no
// keychain item matches (errSecItemNotFound).
const securityItemNotFound = 44

// SecretStore exposes the platform secret store. Only macOS has a
// native store reachable without cgo; every other platform reports
// Unsupported. Lookups match on service name alone so entries written
// by the providers themselves (which use the login account) resolve.
type SecretStore struct{}

// Read returns the secret stored under service.
func (s *SecretStore) Read(service string) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", unsupportedErr("secrets.read")
	}
	out, err := exec.Command("/usr/bin/security",
		"find-generic-password", "-s", service, "-w").Output()
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) && exit.ExitCode() == securityItemNotFound {
			return "", notFoundErr("secrets.read", err)
		}
		return "", ioErr("secrets.read", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// Write stores a secret under service for the login account, replacing
// any existing entry for that service+account pair.
func (s *SecretStore) Write(service, value string) error {
	if runtime.GOOS != "darwin" {
		return unsupportedErr("secrets.write")
	}
	err := exec.Command("/usr/bin/security",
		"add-generic-password", "-U", "-s", service, "-a", loginAccount(), "-w", value).Run()
	if err != nil {
		return ioErr("secrets.write", err)
	}
	return nil
}

func loginAccount() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
