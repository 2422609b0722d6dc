package engine

import "math/bits"

// decimationStages computes how many halving stages fit between the input
// rate and the output-rate floor: the largest s with 2^s <= maxDecimation
// and sampleRate/2^s >= minOutputRate. The search halves down from the
// maximum factor until the floor constraint holds. A rate at or below the
// floor short-circuits to zero stages.
func decimationStages(sampleRate, minOutputRate, maxDecimation int) int {
	if sampleRate <= minOutputRate {
		return 0
	}
	factor := largestPowerOfTwoAtMost(maxDecimation)
	for factor > 1 && sampleRate < minOutputRate*factor {
		factor >>= 1
	}
	return bits.Len(uint(factor)) - 1
}

// framesPerBuffer converts the buffer size in milliseconds to frames and
// truncates to a multiple of 2^stages, so downsampling by the full
// decimation factor is exact.
func framesPerBuffer(bufferMs, sampleRate, stages int) int {
	frames := bufferMs * sampleRate / 1000
	return frames - frames%(1<<stages)
}

func largestPowerOfTwoAtMost(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << (bits.Len(uint(n)) - 1)
}
