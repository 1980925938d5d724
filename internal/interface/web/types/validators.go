package types

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"
)

var (
	hashRegexp      = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	signatureRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)
	purchaseRegexp  = regexp.MustCompile(`^[0-9A-Za-z_\-:.]{1,64}$`)
	currencyRegexp  = regexp.MustCompile(`^[A-Za-z]{2,12}$`)
)

// RegisterValidators adds the relay specific tags to the gin validator. Tags
// are looked up by name at bind time, so this must run before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	for tag, fn := range map[string]validator.Func{
		"hash32":     matches(hashRegexp),
		"signature":  matches(signatureRegexp),
		"purchaseid": matches(purchaseRegexp),
		"currency":   matches(currencyRegexp),
		"uint256":    isUint256,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// isUint256 accepts a positive decimal amount that fits a uint256.
func isUint256(fl validator.FieldLevel) bool {
	v, err := uint256.FromDecimal(fl.Field().String())
	return err == nil && !v.IsZero()
}
