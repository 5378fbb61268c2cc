package finance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

var (
	amountTag  = "amount"
	amountText = "must be a positive amount with at most 2 decimal places"

	dueDatesLenTag  = "duedateslen"
	dueDatesLenText = "must contain exactly numeroPagos dates"

	percentStepTag  = "percentstep"
	percentStepText = "must be a multiple of 5"
)

// RegisterValidators registers the finance validations on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(financialConfigValidation, FinancialConfig{})
	validate.RegisterStructValidation(chargeValidation, NewCharge{})
	validate.RegisterStructValidation(scholarshipValidation, NewScholarship{})
	core.RegisterCustomTranslation(validate, translator, amountTag, amountText)
	core.RegisterCustomTranslation(validate, translator, dueDatesLenTag, dueDatesLenText)
	core.RegisterCustomTranslation(validate, translator, percentStepTag, percentStepText)
}

func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}

func financialConfigValidation(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(FinancialConfig)
	if !validAmount(cfg.TotalSemestre) {
		sl.ReportError(cfg.TotalSemestre, "totalSemestre", "TotalSemestre", amountTag, "")
	}
	if cfg.NumeroPagos > 0 && len(cfg.FechasVencimiento) > 0 && len(cfg.FechasVencimiento) != cfg.NumeroPagos {
		sl.ReportError(cfg.FechasVencimiento, "fechasVencimiento", "FechasVencimiento", dueDatesLenTag, "")
	}
}

func chargeValidation(sl validator.StructLevel) {
	nc := sl.Current().Interface().(NewCharge)
	if !validAmount(nc.Monto) {
		sl.ReportError(nc.Monto, "monto", "Monto", amountTag, "")
	}
}

func scholarshipValidation(sl validator.StructLevel) {
	ns := sl.Current().Interface().(NewScholarship)
	if ns.Porcentaje%ScholarshipPercentStep != 0 {
		sl.ReportError(ns.Porcentaje, "porcentaje", "Porcentaje", percentStepTag, "")
	}
}
