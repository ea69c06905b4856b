package util

import (
	"errors"
	"fmt"
	"os"
)

// Overridden in tests
var dockerEnvPath = "/.dockerenv"

func IsRunningInDocker() bool {
	_, err := os.Stat(dockerEnvPath)
	return err == nil
}

// RequireMounted fails when running in a container and path doesn't exist.
// Data that must outlive the container has to be mounted by the host as a
// volume instead of being created inside it.
func RequireMounted(path string) error {
	if !IsRunningInDocker() {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s is not mounted, please use docker volumes to mount it to /app/%s", path, path)
	}

	return nil
}
