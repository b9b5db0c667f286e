package evalscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rsdeploy/rsdeploy/internal/utils/fmtutil"
)

// VersionLine is the first line of every generated script.
const VersionLine = "//VERSION=3"

func writeHeader(b *strings.Builder, bands []string, units string) {
	quoted := make([]string, len(bands))
	for i, band := range bands {
		quoted[i] = strconv.Quote(band)
	}

	b.WriteString(VersionLine + "\n")
	b.WriteString("\n")
	b.WriteString("function setup() {\n")
	b.WriteString("  return {\n")
	b.WriteString("    input: [{\n")
	fmt.Fprintf(b, "      bands: [%s],\n", strings.Join(quoted, ", "))
	fmt.Fprintf(b, "      units: %s\n", strconv.Quote(units))
	b.WriteString("    }],\n")
	b.WriteString("    output: {\n")
	b.WriteString("      bands: 1,\n")
	b.WriteString("      sampleType: \"FLOAT32\"\n")
	b.WriteString("    }\n")
	b.WriteString("  };\n")
	b.WriteString("}\n")
}

// writePredict emits the logistic wrapper over the sum of all tree functions.
// It is only meaningful for models trained with a binary log-loss objective.
func writePredict(b *strings.Builder, trees int, featureNames []string, sigmoid float64) {
	args := paramList(featureNames)
	calls := make([]string, trees)
	for i := range calls {
		calls[i] = fmt.Sprintf("%s(%s)", treeFuncName(i), args)
	}

	fmt.Fprintf(b, "function predict(%s) {\n", args)
	fmt.Fprintf(b, "  return 1/(1+Math.exp(-%s*(%s)));\n", fmtutil.FormatCoefficient(sigmoid), strings.Join(calls, "+"))
	b.WriteString("}\n")
}

// writeEvaluatePixel emits the per-pixel entry point and returns the features
// that had to be left as placeholders.
func writeEvaluatePixel(b *strings.Builder, featureNames []string, bands map[string]bool, derived map[string]string) []string {
	var unresolved []string

	b.WriteString("function evaluatePixel(sample) {\n")
	for _, name := range featureNames {
		if bands[name] {
			fmt.Fprintf(b, "  let %s = sample.%s;\n", name, name)
			continue
		}
		if src, ok := derived[name]; ok && strings.TrimSpace(src) != "" {
			fmt.Fprintf(b, "  let %s = %s;\n", name, strings.TrimSpace(src))
			continue
		}
		unresolved = append(unresolved, name)
		fmt.Fprintf(b, "  let %s = NaN; // derived feature: replace NaN with an expression over sample bands\n", name)
	}
	fmt.Fprintf(b, "  return [predict(%s) * sample.dataMask];\n", paramList(featureNames))
	b.WriteString("}\n")
	return unresolved
}
