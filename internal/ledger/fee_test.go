package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type FeeSuite struct {
	suite.Suite
}

func TestFeeSuite(t *testing.T) {
	suite.Run(t, new(FeeSuite))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *FeeSuite) fees() []Fee {
	return []Fee{
		{RecordingRights: d("1250.00"), SheetsRevision: d("40.5"), Discount: d("100")},
		{Clarification: d("310.20"), Usufruct: d("12"), Easement: d("0.30")},
		{SignCertification: d("99.99"), ForeignRecord: d("15"), Others: d("7.01"), Discount: d("0.99")},
	}
}

func (s *FeeSuite) TestSum() {
	s.Run("empty sum is zero", func() {
		s.True(Sum().IsZero())
		s.True(SumServices(nil).IsZero())
		s.True(Sum().Total().IsZero())
	})

	s.Run("add is commutative", func() {
		f := s.fees()
		s.True(f[0].Add(f[1]).Equal(f[1].Add(f[0])))
		s.True(f[1].Add(f[2]).Equal(f[2].Add(f[1])))
	})

	s.Run("add is associative", func() {
		f := s.fees()
		left := f[0].Add(f[1]).Add(f[2])
		right := f[0].Add(f[1].Add(f[2]))
		s.True(left.Equal(right))
		s.True(left.Equal(Sum(f...)))
		s.True(Sum(f[2], f[0], f[1]).Equal(Sum(f...)))
	})

	s.Run("total is subtotal minus discount", func() {
		for _, f := range append(s.fees(), Sum(s.fees()...)) {
			s.True(f.Total().Equal(f.SubTotal().Sub(f.Discount)))
		}
		total := Sum(s.fees()...)
		s.True(total.SubTotal().Equal(d("1735.00")))
		s.True(total.Total().Equal(d("1634.01")))
	})

	s.Run("services aggregate their fees", func() {
		services := []Service{{Fee: s.fees()[0]}, {Fee: s.fees()[1]}}
		s.True(SumServices(services).Equal(s.fees()[0].Add(s.fees()[1])))
	})
}

func (s *FeeSuite) TestValidate() {
	s.Run("accepts a valid fee", func() {
		s.NoError(s.fees()[0].Validate())
	})
	s.Run("rejects negative components", func() {
		s.Error(Fee{Others: d("-1")}.Validate())
	})
	s.Run("rejects discount above subtotal", func() {
		s.Error(Fee{Others: d("10"), Discount: d("10.01")}.Validate())
	})
}
