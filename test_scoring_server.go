package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

type ScoringCriterion struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type ScoringResponse struct {
	Transcript        string           `json:"transcript"`
	Score             float64          `json:"score"`
	FluencyCoherence  ScoringCriterion `json:"fluency_coherence"`
	LexicalResource   ScoringCriterion `json:"lexical_resource"`
	GrammaticalRange  ScoringCriterion `json:"grammatical_range"`
	Pronunciation     ScoringCriterion `json:"pronunciation"`
	OverallAssessment string           `json:"overall_assessment"`
}

func scoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(64 << 20) // 64 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	testType := r.FormValue("testType")
	questions := r.FormValue("questions")
	question := r.FormValue("question")
	metadata := r.FormValue("metadata")

	// Get audio file
	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	// Log comprehensive request information
	log.Printf("🎤 SCORING REQUEST RECEIVED:")
	log.Printf("  ═══════════════════════════════════")
	log.Printf("  📊 Submission Info:")
	log.Printf("    Test Type: %s", testType)
	log.Printf("    Questions: %s", questions)
	log.Printf("    Question: %s", question)
	log.Printf("    Metadata: %s", metadata)
	log.Printf("  ═══════════════════════════════════")
	log.Printf("  🎧 Audio Info:")
	log.Printf("    Filename: %s", header.Filename)
	log.Printf("    Audio Size: %d bytes", len(audioData))
	log.Printf("    Content-Type: %s", header.Header.Get("Content-Type"))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	// Create fake scoring response
	response := ScoringResponse{
		Transcript: "Well, I believe learning a new language takes consistent daily practice.",
		Score:      7.0,
		FluencyCoherence: ScoringCriterion{
			Score:        7.0,
			Strengths:    []string{"Maintains flow with little noticeable effort"},
			Improvements: []string{"Reduce fillers between idea groups"},
		},
		LexicalResource: ScoringCriterion{
			Score:        7.5,
			Strengths:    []string{"Good range of topic vocabulary"},
			Improvements: []string{"More idiomatic collocations"},
		},
		GrammaticalRange: ScoringCriterion{
			Score:        6.5,
			Strengths:    []string{"Mix of simple and complex structures"},
			Improvements: []string{"Article accuracy in rapid speech"},
		},
		Pronunciation: ScoringCriterion{
			Score:        7.0,
			Strengths:    []string{"Clear word stress"},
			Improvements: []string{"Sentence-level intonation variety"},
		},
		OverallAssessment: "Fluent delivery with occasional hesitation; good range of vocabulary.",
	}

	// Send JSON response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ SCORING RESPONSE SENT: band %.1f", response.Score)
	log.Println("---")
}

func main() {
	http.HandleFunc("/score", scoreHandler)

	port := ":9000"
	log.Printf("🚀 Test Scoring Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/score", port)
	log.Println("💡 Update your config to use: http://localhost:9000/score")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
