// Package normalize corrects raw host prices into tick-aligned instrument
// prices.
//
// Feeds occasionally deliver prices scaled by 100. Normalize divides by the
// source multiplier, divides again by 100 when the magnitude exceeds the
// instrument's corridor ceiling, and rounds to the nearest tick. The
// correction is applied twice so a value scaled by 10^4 also recovers.
//
// Normalize never fails. Callers use InCorridor to count values that remain
// implausible after correction; those values are still emitted.
package normalize
