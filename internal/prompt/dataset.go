package prompt

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
)

// Sample is one supervised fine-tuning pair.
type Sample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// SampleFromExemplar renders the structured explanation for one exemplar.
// line is the reported source line.
func SampleFromExemplar(e Exemplar, line int) Sample {
	return Sample{
		Input: e.Error,
		Output: "🟥 Error Overview\n" +
			"Error Message: " + e.Error + "\n" +
			"Language / Tool: C/C++ Compiler\n\n" +
			"📍 Where the Error Occurs\n" +
			"File: main.cpp\n" +
			fmt.Sprintf("Line: %d\n", line) +
			"Code Context: A statement is being processed by the compiler.\n\n" +
			"🧠 What the Error Means (Plain English)\n" +
			e.Meaning + "\n\n" +
			"❓ Why This Error Happens\n" +
			"Cause 1: Incorrect syntax or usage\n\n" +
			"❌ Problematic Code\n" +
			e.BadCode + "\n\n" +
			"Explanation: The code violates a C/C++ language rule.\n\n" +
			"✅ Corrected Code\n" +
			e.GoodCode + "\n\n" +
			"Explanation: The code now follows correct syntax and rules.\n\n" +
			"📌 Rule to Remember\n" +
			e.Rule + "\n\n" +
			"📝 One-Line Summary\n" +
			"The error occurred due to incorrect code structure and was fixed by correcting it.",
	}
}

// GenerateDataset draws n samples from the catalog. The same seed always
// yields the same dataset.
func GenerateDataset(n int, seed uint64) []Sample {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		e := Catalog[rng.IntN(len(Catalog))]
		out = append(out, SampleFromExemplar(e, 3+rng.IntN(13)))
	}
	return out
}

// WriteDataset writes samples as indented JSON.
func WriteDataset(w io.Writer, samples []Sample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(samples); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}
