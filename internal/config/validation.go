package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration using struct tags plus the rules that depend on
// the selected drivers.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *AppConfig) error {
	if cfg.Storage.StoreDriver == "postgres" {
		db := cfg.Database
		if db.Host == "" || db.User == "" || db.Name == "" {
			return fmt.Errorf("database: DB_HOST, DB_USER and DB_NAME are required with STORE_DRIVER=postgres")
		}
	}
	if cfg.Storage.BlobDriver == "minio" {
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("minio: endpoint, credentials and bucket are required with BLOB_DRIVER=minio")
		}
	}
	if len(cfg.Access.AdminRoles) == 0 {
		return fmt.Errorf("access: ADMIN_ROLES must name at least one role")
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
