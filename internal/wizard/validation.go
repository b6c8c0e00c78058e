package wizard

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidateContainerName checks the name against the characters docker
// accepts for container names.
func ValidateContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("container name cannot be empty")
	}

	for i, ch := range name {
		isAlnum := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
		if i == 0 && !isAlnum {
			return fmt.Errorf("container name must start with a letter or number")
		}
		if !isAlnum && ch != '_' && ch != '-' && ch != '.' {
			return fmt.Errorf("container name must contain only letters, numbers, underscores, periods, and hyphens")
		}
	}

	return nil
}

// ValidatePort checks if a port number is valid
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

// ValidateSQLFolder requires a relative path that stays inside the project.
func ValidateSQLFolder(folder string) error {
	if strings.TrimSpace(folder) == "" {
		return fmt.Errorf("SQL folder cannot be empty")
	}
	if filepath.IsAbs(folder) {
		return fmt.Errorf("SQL folder must be relative to the working directory")
	}
	clean := filepath.Clean(folder)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("SQL folder must not leave the working directory")
	}
	return nil
}

// ValidatePassword rejects blank passwords. The engines enforce their own
// complexity rules at container start.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	return nil
}
