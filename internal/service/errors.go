package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
)

// invalid wraps domain.ErrValidation with a field-level message.
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// required reports the blank fields, in name order.
func required(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return invalid("%s required", strings.Join(missing, ", "))
}
