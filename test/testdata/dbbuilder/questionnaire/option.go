package questionnairebuilder

import (
	"NYCU-SDC/questionnaire-backend/internal/questionnaire"
)

type Option func(*FactoryParams)

type FactoryParams struct {
	ShortID    string
	FileName   string
	Definition questionnaire.Definition
}

func WithShortID(id string) Option {
	return func(p *FactoryParams) {
		p.ShortID = id
	}
}

func WithFileName(name string) Option {
	return func(p *FactoryParams) {
		p.FileName = name
	}
}

func WithDefinition(def questionnaire.Definition) Option {
	return func(p *FactoryParams) {
		p.Definition = def
	}
}
