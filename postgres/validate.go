package postgres

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/laikahq/sync-engine/models"
)

var validate = validator.New()

func validateAccount(account *models.ConnectionAccount) error {
	var errs error

	if err := validate.Var(account.OrganizationID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("organization_id: %w", err))
	}
	if err := validate.Var(account.Vendor, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("vendor: %w", err))
	}
	if err := validate.Var(account.Alias, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("alias: %w", err))
	}
	if err := validate.Var(account.Status, "required,oneof=pending sync success error"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("status: %w", err))
	}

	return errs
}

func validateObject(object *models.LaikaObject) error {
	var errs error

	if err := validate.Var(object.ObjectTypeID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("object_type_id: %w", err))
	}
	if err := validate.Var(object.ConnectionAccountID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("connection_account_id: %w", err))
	}
	if len(object.Data) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("data: must not be empty"))
	}

	return errs
}

func validatePerson(person *models.Person) error {
	var errs error

	if err := validate.Var(person.OrganizationID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("organization_id: %w", err))
	}
	if err := validate.Var(person.ConnectionAccountID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("connection_account_id: %w", err))
	}
	if err := validate.Var(person.ExternalID, "required"); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("external_id: %w", err))
	}

	return errs
}
