package artifact

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/conneroisu/viewpack/internal/errors"
)

// Load reads a previously generated artifact and returns its mapping.
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewReadError(errors.ErrCodeReadFragment, "read artifact", err).WithPath(path)
	}

	fragments, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRead, errors.ErrCodeArtifactFormat, "parse artifact").WithPath(path)
	}
	return fragments, nil
}

// Parse extracts the mapping from rendered artifact bytes. Anything before the
// export statement, such as the header comment, is ignored.
func Parse(data []byte) (map[string]string, error) {
	i := bytes.Index(data, []byte(exportPrefix))
	if i < 0 {
		return nil, errors.NewValidationError(errors.ErrCodeArtifactFormat, "missing default export")
	}

	body := bytes.TrimSpace(data[i+len(exportPrefix):])
	body = bytes.TrimSuffix(body, []byte(";"))

	fragments := make(map[string]string)
	if err := json.Unmarshal(body, &fragments); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeArtifactFormat, "decode mapping")
	}
	return fragments, nil
}
