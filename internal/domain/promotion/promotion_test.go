package promotion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func baseParams() BaseParams {
	return BaseParams{
		ID:               "promo-001",
		Title:            "Spring Point Festival",
		StartDate:        date(2023, 3, 1),
		EndDate:          date(2023, 3, 31),
		PromotionType:    PromotionTypePoint,
		DistributionType: DistributionTypeSaving,
		ProductType:      "DELIVERY",
		ExposureProducts: []ExposureProduct{
			{ProductID: "prod-1", ExposureYn: true, StartDate: date(2023, 3, 1), EndDate: date(2023, 3, 15)},
		},
	}
}

func newTestPoint(t *testing.T) *PointPromotion {
	t.Helper()
	p, err := NewPointPromotion(PointPromotionParams{
		BaseParams:      baseParams(),
		PromotionBudget: dec(1000),
		SavingType:      SavingFixedRate,
		SavingRate:      dec(10),
	})
	require.NoError(t, err)
	return p
}

func TestNewBase_InvalidPeriod(t *testing.T) {
	params := baseParams()
	params.EndDate = params.StartDate

	_, err := NewPointPromotion(PointPromotionParams{
		BaseParams:      params,
		PromotionBudget: dec(1000),
		SavingType:      SavingFixedRate,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestNewBase_InvalidAlarmThreshold(t *testing.T) {
	params := baseParams()
	params.ExhaustionAlarmThresholds = []int{50, 60}

	_, err := NewPointPromotion(PointPromotionParams{
		BaseParams:      params,
		PromotionBudget: dec(1000),
		SavingType:      SavingFixedRate,
	})

	assert.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestPromotion_PeriodChecks_InclusiveBounds(t *testing.T) {
	p := newTestPoint(t)

	testCases := []struct {
		name    string
		at      time.Time
		started bool
		ended   bool
		within  bool
	}{
		{"before_start", date(2023, 2, 28), false, false, false},
		{"at_start", date(2023, 3, 1), true, false, true},
		{"middle", date(2023, 3, 15), true, false, true},
		{"at_end", date(2023, 3, 31), true, false, true},
		{"after_end", date(2023, 3, 31).Add(time.Second), true, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.started, p.HasStarted(tc.at))
			assert.Equal(t, tc.ended, p.HasEnded(tc.at))
			assert.Equal(t, tc.within, p.IsWithinValidPeriod(tc.at))
		})
	}
}

func TestPromotion_EnsureActive(t *testing.T) {
	p := newTestPoint(t)

	assert.NoError(t, p.EnsureActive(date(2023, 3, 10)))
	assert.ErrorIs(t, p.EnsureActive(date(2023, 4, 1)), ErrPromotionNotActive)
}

func TestPromotion_UpdateTitle(t *testing.T) {
	p := newTestPoint(t)

	require.NoError(t, p.UpdateTitle("Summer Points"))
	assert.Equal(t, "Summer Points", p.Title())

	assert.ErrorIs(t, p.UpdateTitle("   "), ErrInvalidTitle)
	assert.ErrorIs(t, p.UpdateTitle(strings.Repeat("a", MaxTitleLength+1)), ErrInvalidTitle)
	assert.Equal(t, "Summer Points", p.Title(), "failed update must keep previous title")

	require.NoError(t, p.UpdateTitle(strings.Repeat("a", MaxTitleLength)))
}

func TestPromotion_ReschedulePromotion(t *testing.T) {
	today := date(2023, 3, 10)

	testCases := []struct {
		name     string
		newStart time.Time
		newEnd   time.Time
		wantErr  bool
	}{
		{"valid", date(2023, 3, 11), date(2023, 4, 30), false},
		{"start_is_today", today, date(2023, 4, 30), true},
		{"start_in_past", date(2023, 3, 1), date(2023, 4, 30), true},
		{"end_beyond_one_year", date(2023, 3, 11), today.AddDate(0, 0, MaxRescheduleDays+1), true},
		{"end_exactly_one_year", date(2023, 3, 11), today.AddDate(0, 0, MaxRescheduleDays), false},
		{"start_after_end", date(2023, 5, 1), date(2023, 4, 30), true},
		{"start_equals_end", date(2023, 4, 30), date(2023, 4, 30), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPoint(t)
			oldStart, oldEnd := p.StartDate(), p.EndDate()

			err := p.ReschedulePromotion(tc.newStart, tc.newEnd, today)

			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				assert.Equal(t, oldStart, p.StartDate(), "start date must be unchanged")
				assert.Equal(t, oldEnd, p.EndDate(), "end date must be unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.newStart, p.StartDate())
			assert.Equal(t, tc.newEnd, p.EndDate())
		})
	}
}

func TestPromotion_EqualByIdentity(t *testing.T) {
	a := newTestPoint(t)
	b := newTestPoint(t)
	require.NoError(t, b.UpdateTitle("Different title"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	other := newTestDownloadable(t, func(p *DownloadableCouponParams) { p.ID = "promo-002" })
	assert.False(t, a.Equal(other))
}

func TestPromotion_EqualTypedNil(t *testing.T) {
	a := newTestPoint(t)

	var point *PointPromotion
	var downloadable *DownloadableCoupon
	var reward *RewardCoupon
	var coupon *CouponBase

	for name, other := range map[string]Promotion{
		"point":        point,
		"downloadable": downloadable,
		"reward":       reward,
		"coupon_base":  coupon,
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, a.Equal(other))
			})
		})
	}
}

func TestPromotion_ExposureProductsDefensiveCopy(t *testing.T) {
	p := newTestPoint(t)

	products := p.ExposureProducts()
	require.Len(t, products, 1)
	products[0].ProductID = "tampered"

	assert.Equal(t, "prod-1", p.ExposureProducts()[0].ProductID)
	assert.Len(t, p.ExposureProducts(), 1)
}

func TestPromotion_UpdateExhaustionAlarm(t *testing.T) {
	p := newTestPoint(t)

	require.NoError(t, p.UpdateExhaustionAlarm(true, []int{50, 95}))
	assert.True(t, p.ExhaustionAlarmYn())
	assert.Equal(t, []int{50, 95}, p.ExhaustionAlarmThresholds())

	err := p.UpdateExhaustionAlarm(true, []int{80})
	assert.ErrorIs(t, err, ErrInvalidPercentage)
	assert.Equal(t, []int{50, 95}, p.ExhaustionAlarmThresholds())
}

func TestPromotion_DurationInDays_CeilsPartialDays(t *testing.T) {
	p := newTestPoint(t)
	assert.Equal(t, 30, p.DurationInDays())

	require.NoError(t, p.ReschedulePromotion(date(2023, 3, 11), date(2023, 3, 13).Add(time.Hour), date(2023, 3, 10)))
	assert.Equal(t, 3, p.DurationInDays())
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.IsValid())
	}
	assert.False(t, Kind("BUNDLE").IsValid())
}
