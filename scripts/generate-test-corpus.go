//go:build ignore

// Generates a synthetic document corpus for exercising the watcher and
// orchestrator against a realistic directory tree.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output /tmp/nook-corpus
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of files to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	imageFrac = flag.Float64("images", 0.2, "Fraction of files that are PNG images")
	seed      = flag.Int64("seed", 7, "Random seed for reproducibility")
)

var folders = []string{
	"notes", "notes/work", "notes/personal", "recipes", "journal",
	"projects/alpha", "projects/beta", "archive/2024", "archive/2025",
}

var topics = []string{
	"quarterly planning", "sourdough starter", "garden irrigation",
	"quantum computing reading list", "trip to Lisbon", "tax documents",
	"home server setup", "piano practice log", "book club picks",
}

var words = strings.Fields(`
project deadline review meeting notes draft final budget estimate
kitchen garden seeds water sunlight harvest yield compost soil
theorem lemma proof vector embedding index search ranking recall
flight hotel museum train ticket itinerary passport luggage coast
`)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for _, f := range folders {
		if err := os.MkdirAll(filepath.Join(*outputDir, f), 0o755); err != nil {
			fatal(err)
		}
	}

	images := int(float64(*numFiles) * *imageFrac)
	for i := 0; i < *numFiles; i++ {
		folder := folders[rng.Intn(len(folders))]
		if i < images {
			path := filepath.Join(*outputDir, folder, fmt.Sprintf("photo-%04d.png", i))
			if err := writePNG(path, rng); err != nil {
				fatal(err)
			}
			continue
		}
		ext := ".md"
		if rng.Intn(3) == 0 {
			ext = ".txt"
		}
		path := filepath.Join(*outputDir, folder, fmt.Sprintf("doc-%04d%s", i, ext))
		if err := os.WriteFile(path, []byte(document(rng, ext == ".md")), 0o644); err != nil {
			fatal(err)
		}
	}
	fmt.Printf("wrote %d files (%d images) under %s\n", *numFiles, images, *outputDir)
}

func document(rng *rand.Rand, markdown bool) string {
	var b strings.Builder
	topic := topics[rng.Intn(len(topics))]
	if markdown {
		fmt.Fprintf(&b, "# %s\n\n", topic)
	} else {
		fmt.Fprintf(&b, "%s\n\n", topic)
	}
	paragraphs := 2 + rng.Intn(6)
	for p := 0; p < paragraphs; p++ {
		sentences := 2 + rng.Intn(4)
		for s := 0; s < sentences; s++ {
			n := 6 + rng.Intn(10)
			for w := 0; w < n; w++ {
				if w > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(words[rng.Intn(len(words))])
			}
			b.WriteString(". ")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func writePNG(path string, rng *rand.Rand) error {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	base := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := base
			c.R += uint8((x * y) % 32)
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
