package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	difficultyTag  = "difficulty"
	contentTypeTag = "contenttype"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, difficultyTag, Difficulties)
	core.RegisterOneOf(validate, translator, contentTypeTag, ContentTypes)
}
