package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return goerr.Wrap(model.ErrEmptyText, "empty memory text")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return goerr.New("text exceeds maximum length",
			goerr.T(model.TagValidation),
			goerr.V("max", MaxTextLength),
			goerr.V("length", utf8.RuneCountInString(text)))
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return goerr.New("too many tags",
			goerr.T(model.TagValidation),
			goerr.V("max", MaxTags),
			goerr.V("count", len(tags)))
	}
	for _, tag := range tags {
		if tag == "" {
			return goerr.New("tag must not be empty", goerr.T(model.TagValidation))
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return goerr.New("tag exceeds maximum length",
				goerr.T(model.TagValidation),
				goerr.V("max", MaxTagLength),
				goerr.V("tag", tag))
		}
	}
	return nil
}

func validateSource(source string) error {
	if utf8.RuneCountInString(source) > MaxSourceLength {
		return goerr.New("source exceeds maximum length",
			goerr.T(model.TagValidation),
			goerr.V("max", MaxSourceLength))
	}
	return nil
}
