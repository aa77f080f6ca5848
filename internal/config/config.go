package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Remote agent (Dify chat-messages API)
	DifyBaseURL      string
	DifyAPIKey       string
	DifyResponseMode string // "streaming" or "blocking"
	FileVariableKey  string // workflow input variable carrying the uploaded document
	RequireMaterial  bool

	// First-turn policy: "static", "remote" or "parameters"
	OpeningMode  string
	OpeningLine  string
	TriggerQuery string

	// When the agent answers with an empty string, still append the
	// assistant turn or skip it entirely.
	KeepEmptyAnswer bool

	// Speech collaborators
	OpenAIKey     string
	SttModel      string
	SttLanguage   string
	TTSProvider   string // "openai" or "deepgram"
	TTSModel      string
	TTSVoice      string
	DeepgramKey   string
	DeepgramModel string

	// Turn log backend
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string

	// Login gate: comma-separated user:password pairs
	Users string

	RequestTimeout time.Duration
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	difyBase := os.Getenv("DIFY_BASE_URL")
	if difyBase == "" {
		difyBase = "https://api.dify.ai/v1"
	}
	difyKey := os.Getenv("DIFY_API_KEY")
	if difyKey == "" {
		log.Println("Warning: DIFY_API_KEY not set - the remote agent will not work")
	}
	responseMode := os.Getenv("DIFY_RESPONSE_MODE")
	if responseMode != "blocking" {
		responseMode = "streaming"
	}
	fileVar := os.Getenv("DIFY_FILE_VARIABLE_KEY")
	if fileVar == "" {
		fileVar = "material"
	}

	openingMode := os.Getenv("OPENING_MODE")
	switch openingMode {
	case "static", "remote", "parameters":
	default:
		openingMode = "static"
	}
	openingLine := os.Getenv("OPENING_LINE")
	if openingMode == "static" && openingLine == "" {
		log.Println("Warning: OPENING_LINE not set - the first assistant turn will be empty")
	}
	triggerQuery := os.Getenv("TRIGGER_QUERY")
	if triggerQuery == "" {
		triggerQuery = "授業内容について学んだことを教えてください。"
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - transcription and speech synthesis will not work")
	}
	sttModel := os.Getenv("STT_MODEL")
	if sttModel == "" {
		sttModel = "whisper-1"
	}
	sttLang := os.Getenv("STT_LANGUAGE")
	if sttLang == "" {
		sttLang = "ja"
	}
	ttsProvider := os.Getenv("TTS_PROVIDER")
	if ttsProvider != "deepgram" {
		ttsProvider = "openai"
	}
	ttsModel := os.Getenv("TTS_MODEL")
	if ttsModel == "" {
		ttsModel = "tts-1"
	}
	ttsVoice := os.Getenv("TTS_VOICE")
	if ttsVoice == "" {
		ttsVoice = "alloy"
	}
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if ttsProvider == "deepgram" && deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}
	deepgramModel := os.Getenv("DEEPGRAM_MODEL")

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set - turn logging disabled")
	}
	supabaseTable := os.Getenv("SUPABASE_TABLE")
	if supabaseTable == "" {
		supabaseTable = "interview_log"
	}

	users := os.Getenv("APP_USERS")
	if users == "" {
		log.Println("Warning: APP_USERS not set - nobody will be able to log in")
	}

	timeout := 60 * time.Second
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	keepEmpty := true
	if v := os.Getenv("KEEP_EMPTY_ANSWER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			keepEmpty = b
		}
	}

	requireMaterial := false
	if v := os.Getenv("REQUIRE_MATERIAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			requireMaterial = b
		}
	}

	log.Printf("config: HTTP_ADDRESS=%s OPENING_MODE=%s DIFY_RESPONSE_MODE=%s", addr, openingMode, responseMode)
	return Config{
		HTTPAddress:      addr,
		DifyBaseURL:      difyBase,
		DifyAPIKey:       difyKey,
		DifyResponseMode: responseMode,
		FileVariableKey:  fileVar,
		RequireMaterial:  requireMaterial,
		OpeningMode:      openingMode,
		OpeningLine:      openingLine,
		TriggerQuery:     triggerQuery,
		KeepEmptyAnswer:  keepEmpty,
		OpenAIKey:        openaiKey,
		SttModel:         sttModel,
		SttLanguage:      sttLang,
		TTSProvider:      ttsProvider,
		TTSModel:         ttsModel,
		TTSVoice:         ttsVoice,
		DeepgramKey:      deepgramKey,
		DeepgramModel:    deepgramModel,
		SupabaseURL:      supabaseURL,
		SupabaseKey:      supabaseKey,
		SupabaseTable:    supabaseTable,
		Users:            users,
		RequestTimeout:   timeout,
	}
}
