package service

import (
	"fmt"
	"strings"
)

// AllowedExtensions are the accepted upload extensions, compared exactly.
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

// ValidateFilename checks the final dot-segment of name against
// AllowedExtensions. A name without a dot has no extension and fails.
func ValidateFilename(name string) error {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return fmt.Errorf("%w: %q has no extension", ErrUnsupportedMediaType, name)
	}

	ext := name[i+1:]
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: extension %q is not one of %s", ErrUnsupportedMediaType, ext, strings.Join(AllowedExtensions, ", "))
}
