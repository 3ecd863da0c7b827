package service

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"filevault/internal/errdefs"
)

const maxNameLength = 255

var allowedNameChars = regexp.MustCompile(`^[^\\/:*?"<>|]*$`)

// cleanName trims and validates a folder or file name.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("name is required"),
		validation.RuneLength(1, maxNameLength).Error("name must be at most 255 characters"),
		validation.Match(allowedNameChars).Error(`name must not contain any of \ / : * ? " < > |`),
	)
	if err != nil {
		return "", errdefs.InvalidInput("%s", err.Error())
	}
	return name, nil
}
