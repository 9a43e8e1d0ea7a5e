package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress     string
	AssemblyAIKey   string
	CerebrasKey     string
	CerebrasModelID string
	DeepgramKey     string
	DeepgramModel   string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseBucket  string

	SpeechIdleMs            int
	CodeIdleMs              int
	MinInvocationIntervalMs int
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	loadDotenv()

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "gpt-oss-120b"
	}
	if cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - the interview agent will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - audio responses disabled")
	}
	deepgramModel := os.Getenv("DEEPGRAM_MODEL")

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	supabaseBucket := os.Getenv("SUPABASE_BUCKET")
	if supabaseBucket == "" {
		supabaseBucket = "interviews"
	}
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL / SUPABASE_SERVICE_ROLE_KEY not set - archiving and resume lookup disabled")
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:             addr,
		AssemblyAIKey:           assemblyAIKey,
		CerebrasKey:             cerebrasKey,
		CerebrasModelID:         cerebrasModel,
		DeepgramKey:             deepgramKey,
		DeepgramModel:           deepgramModel,
		SupabaseURL:             supabaseURL,
		SupabaseKey:             supabaseKey,
		SupabaseBucket:          supabaseBucket,
		SpeechIdleMs:            envInt("SPEECH_IDLE_MS", 2000),
		CodeIdleMs:              envInt("CODE_IDLE_MS", 30000),
		MinInvocationIntervalMs: envInt("MIN_INVOCATION_INTERVAL_MS", 1000),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
