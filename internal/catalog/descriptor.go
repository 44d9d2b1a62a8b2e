// Package catalog describes the models a companion can run: the immutable
// Descriptor value, its validation rules and the loaders that build a
// catalog from a document on disk or from a directory of *.gguf files.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"companiond/internal/common/fsutil"
)

// Defaults mirror the context geometry the companion app ships with.
const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.8
	DefaultTopK        = 40
	DefaultTopP        = 0.95
)

// Descriptor is the configuration of one selectable model. It is a value
// type; two descriptors are the same model iff they compare equal.
type Descriptor struct {
	// Name identifies the model in the catalog.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required"`
	// Path is an optional local file path. "~" is expanded.
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	// URL is the remote source of the weights. Downloads happen elsewhere;
	// the file is expected under the storage root as FileName.
	URL      string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" validate:"omitempty,url"`
	FileName string `json:"file_name,omitempty" yaml:"file_name,omitempty" toml:"file_name,omitempty" validate:"omitempty,excludesall=/\\"`
	// Backend is the preferred execution backend; BackendAuto means none.
	Backend      Backend `json:"backend,omitempty" yaml:"backend,omitempty" toml:"backend,omitempty"`
	Thinking     bool    `json:"thinking,omitempty" yaml:"thinking,omitempty" toml:"thinking,omitempty"`
	Temperature  float32 `json:"temperature" yaml:"temperature" toml:"temperature" validate:"gte=0"`
	TopK         int     `json:"top_k" yaml:"top_k" toml:"top_k" validate:"gte=0"`
	TopP         float32 `json:"top_p" yaml:"top_p" toml:"top_p" validate:"gte=0,lte=1"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" validate:"gt=0"`
	SystemPrompt string  `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty" toml:"system_prompt,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that the descriptor names a source: a
// local path, or a remote URL together with the file name it lands under.
// It does not touch the filesystem.
func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{Model: d.Name, Field: fe.Field(), Reason: describeTag(fe)}
		}
		return &ConfigError{Model: d.Name, Reason: err.Error()}
	}
	if d.Path != "" {
		return nil
	}
	if d.URL != "" && d.FileName != "" {
		return nil
	}
	return &ConfigError{Model: d.Name, Reason: "neither a local path nor a remote url with file name"}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "url":
		return "must be a url"
	case "excludesall":
		return "must be a bare file name"
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

// ResolvePath returns the effective model file: Path when that file exists,
// otherwise FileName under root when the descriptor has a remote source and
// the downloaded file exists. It returns "" when neither resolves.
func (d Descriptor) ResolvePath(root string) string {
	if d.Path != "" {
		if p, err := fsutil.ExpandHome(d.Path); err == nil && fsutil.FileExists(p) {
			return p
		}
	}
	if d.URL == "" || d.FileName == "" {
		return ""
	}
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return ""
	}
	p := filepath.Join(base, d.FileName)
	if !fsutil.FileExists(p) {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// WithDefaults fills a zero MaxTokens with DefaultMaxTokens. Sampling fields
// are left alone because zero is meaningful there.
func (d Descriptor) WithDefaults() Descriptor {
	if d.MaxTokens == 0 {
		d.MaxTokens = DefaultMaxTokens
	}
	return d
}
