package features

import (
	"math"

	"crystal-ball/internal/domain"
)

const ContractVersion = "v1"

// Contract feature names, in the exact order model artifacts were trained
// against. Order matters: vectors handed to models are positional.
const (
	FeatBTCNasdaqBeta10D  = "btc_nasdaq_beta_10d"
	FeatSentQ5Flag        = "sent_q5_flag"
	FeatROC1D             = "roc_1d"
	FeatHighLowRange      = "high_low_range"
	FeatROC3D             = "roc_3d"
	FeatSent5D            = "sent_5d"
	FeatSentCrossUpXRange = "sent_cross_up_x_high_low_range"
	FeatBTCNasdaqCorr5D   = "btc_nasdaq_corr_5d"
	FeatBBWidth           = "bb_width"
	FeatSentAccel         = "sent_accel"
	FeatSentVol           = "sent_vol"
	FeatSentNegXRange     = "sent_neg_x_high_low_range"
	FeatSentQ2XSMARatio   = "sent_q2_flag_x_close_to_sma10"
)

var contractNames = []string{
	FeatBTCNasdaqBeta10D,
	FeatSentQ5Flag,
	FeatROC1D,
	FeatHighLowRange,
	FeatROC3D,
	FeatSent5D,
	FeatSentCrossUpXRange,
	FeatBTCNasdaqCorr5D,
	FeatBBWidth,
	FeatSentAccel,
	FeatSentVol,
	FeatSentNegXRange,
	FeatSentQ2XSMARatio,
}

// ContractNames returns the ordered contract in a fresh slice.
func ContractNames() []string {
	return append([]string(nil), contractNames...)
}

// Vector flattens a feature row into contract order.
func Vector(row domain.FeatureDay) []float64 {
	return []float64{
		row.BTCNasdaqBeta10D,
		row.SentQ5Flag,
		row.ROC1D,
		row.HighLowRange,
		row.ROC3D,
		row.Sent5D,
		row.SentCrossUpXRange,
		row.BTCNasdaqCorr5D,
		row.BBWidth,
		row.SentAccel,
		row.SentVol,
		row.SentNegXRange,
		row.SentQ2FlagXSMARatio,
	}
}

// Complete reports whether every contract value is a finite number.
func Complete(row domain.FeatureDay) bool {
	for _, v := range Vector(row) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
