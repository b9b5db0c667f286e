// Package fmtutil provides number formatting for generated source text and human-readable output.
// Package fmtutil 提供用于生成源代码文本和人类可读输出的数字格式化工具。
package fmtutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NoRounding disables rounding in RoundTo.
// NoRounding 表示 RoundTo 不进行舍入。
const NoRounding = -1

// RoundTo rounds v to the given number of fractional digits, half away from zero.
// A negative digits value returns v unchanged.
// RoundTo 将 v 舍入到指定的小数位数（远离零方向舍入）。digits 为负数时原样返回。
func RoundTo(v float64, digits int) float64 {
	if digits < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(digits)
	scaled := v * p
	if math.IsInf(scaled, 0) {
		return v
	}
	return math.Round(scaled) / p
}

// FormatLiteral renders v as the shortest literal that round-trips, always
// carrying a fraction or exponent so integral values read as floats ("1.0").
// Exponent form is used below 1e-4 and from 1e16 upwards.
// FormatLiteral 将 v 格式化为可往返的最短字面量，整数值也带小数部分（如 "1.0"）。
func FormatLiteral(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if v == 0 {
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// FormatCoefficient renders a multiplier without a forced fraction ("1", "0.5").
// FormatCoefficient 格式化乘数，不强制小数部分（如 "1"、"0.5"）。
func FormatCoefficient(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatNumber formats large numbers with K/M/G suffixes.
// FormatNumber 使用 K/M/G 后缀格式化大数字。
func FormatNumber(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.2fK", float64(n)/1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%.2fM", float64(n)/1000000)
	}
	return fmt.Sprintf("%.2fG", float64(n)/1000000000)
}

// FormatLength formats a linear measure in the caller's unit with two decimals.
// FormatLength 以调用方单位格式化长度，保留两位小数。
func FormatLength(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0.00"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatDuration formats a duration to human readable format.
// FormatDuration 将持续时间格式化为可读格式。
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Microsecond).String()
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
