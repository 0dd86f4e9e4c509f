package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	dErrors "landreg/pkg/domain-errors"
)

type TariffSuite struct {
	suite.Suite
	calc *Calculator
}

func TestTariffSuite(t *testing.T) {
	suite.Run(t, new(TariffSuite))
}

func (s *TariffSuite) SetupTest() {
	tariffs, err := LoadTariffs(nil)
	s.Require().NoError(err)
	s.calc = NewCalculator(Config{BaseSalaryValue: d("100")}, tariffs)
}

func (s *TariffSuite) TestCalculate() {
	s.Run("fixed units multiply by quantity", func() {
		fee, err := s.calc.Calculate("INS-AVISO", 3, decimal.Zero)
		s.Require().NoError(err)
		s.True(fee.RecordingRights.Equal(d("600")))
		s.True(fee.Total().Equal(d("600")))
	})

	s.Run("proportional tariff applies percentage", func() {
		fee, err := s.calc.Calculate("INS-DOM", 1, d("1000000"))
		s.Require().NoError(err)
		s.True(fee.RecordingRights.Equal(d("5000")))
	})

	s.Run("proportional tariff clamps to minimum", func() {
		fee, err := s.calc.Calculate("INS-DOM", 1, d("1000"))
		s.Require().NoError(err)
		s.True(fee.RecordingRights.Equal(d("500")))
	})

	s.Run("proportional tariff clamps to maximum", func() {
		fee, err := s.calc.Calculate("INS-DOM", 1, d("100000000"))
		s.Require().NoError(err)
		s.True(fee.RecordingRights.Equal(d("30000")))
	})

	s.Run("component routing", func() {
		fee, err := s.calc.Calculate("SERVIDUMBRE", 1, decimal.Zero)
		s.Require().NoError(err)
		s.True(fee.Easement.Equal(d("400")))
		s.True(fee.RecordingRights.IsZero())
	})

	s.Run("unknown tariff", func() {
		_, err := s.calc.Calculate("NOPE", 1, decimal.Zero)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non positive quantity", func() {
		_, err := s.calc.Calculate("INS-AVISO", 0, decimal.Zero)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
