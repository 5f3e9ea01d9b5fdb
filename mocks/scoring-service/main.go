// Command scoring-service is a stand-in for the external risk model used in
// local runs and e2e scenarios. SCORING_MODE switches between healthy
// ("ok"), failing ("error") and slow ("slow") behavior so breaker paths can
// be exercised by hand.
package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"os"
	"time"
)

type scoreRequest struct {
	Features map[string]any `json:"features"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

func main() {
	addr := os.Getenv("SCORING_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mode := os.Getenv("SCORING_MODE")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /score", func(w http.ResponseWriter, r *http.Request) {
		switch mode {
		case "error":
			http.Error(w, `{"error":"model unavailable"}`, http.StatusServiceUnavailable)
			return
		case "slow":
			time.Sleep(2 * time.Second)
		}

		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scoreResponse{Score: score(req.Features)})
	})

	log.Printf("scoring-service listening on %s (mode=%q)", addr, mode)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// score is a fixed blend of the precomputed risk features.
func score(f map[string]any) float64 {
	s := 0.4*num(f["merchant_risk"]) + 0.3*num(f["ip_risk"]) + 0.2*num(f["device_risk"]) +
		0.1*math.Tanh(num(f["velocity_1h"])/10)
	return math.Max(0, math.Min(1, s))
}

func num(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
