package i18n

import (
	"reflect"
	"strings"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting          string
	ConfigLoaded      string
	UsingDBPath       string
	ServerListening   string
	ShuttingDown      string
	ShutdownComplete  string
	ConfigLoadFailed  string
	LoggerInitFailed  string
	DBInitFailed      string
	PresetsLoaded     string
	PresetsLoadFailed string
	DataSourceReady   string
	MonitorStarted    string
	APIServerError    string
	TokenIssued       string
	BarsExported      string
	CacheEvicted      string
	DataSourceDown    string

	// Optimizer
	OptimizerCandidateFailed  string
	OptimizerValidationFailed string
	OptimizerGridStart        string
	OptimizerGridDone         string
	OptimizerGeneration       string
	OptimizerGeneticDone      string

	// Engine
	BacktestDone       string
	OptimizeStart      string
	RetrainStart       string
	RecordSaved        string
	RecordDecodeFailed string

	// Orders
	OrderFilled   string
	OrderRejected string
	RiskRejected  string

	// Live trading
	TraderStarted       string
	TraderStopped       string
	TraderReplaced      string
	TraderHistoryFailed string
	TraderHistoryLoaded string
	TraderPollFailed    string
	TraderNoSignal      string
	TraderSignal        string
	TraderSignalSkipped string
	TraderOrderFilled   string
	TraderPersistFailed string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:          "Starting strategy lab",
	ConfigLoaded:      "Config loaded",
	UsingDBPath:       "Using DB path",
	ServerListening:   "Server listening",
	ShuttingDown:      "Shutting down gracefully...",
	ShutdownComplete:  "Shutdown complete",
	ConfigLoadFailed:  "Failed to load config",
	LoggerInitFailed:  "Failed to init logger",
	DBInitFailed:      "Failed to init database",
	PresetsLoaded:     "Strategy presets loaded",
	PresetsLoadFailed: "Failed to load strategy presets, using defaults",
	DataSourceReady:   "Market data source ready",
	MonitorStarted:    "Monitor started",
	APIServerError:    "API server error",
	TokenIssued:       "API token issued",
	BarsExported:      "Bars exported",
	CacheEvicted:      "Expired bar cache entries evicted",
	DataSourceDown:    "Market data source unreachable",

	// Optimizer
	OptimizerCandidateFailed:  "Candidate evaluation failed",
	OptimizerValidationFailed: "Validation backtest failed",
	OptimizerGridStart:        "Grid search started",
	OptimizerGridDone:         "Grid search finished",
	OptimizerGeneration:       "Generation evaluated",
	OptimizerGeneticDone:      "Genetic search finished",

	// Engine
	BacktestDone:       "Backtest finished",
	OptimizeStart:      "Optimization started",
	RetrainStart:       "Retraining strategy",
	RecordSaved:        "Strategy record saved",
	RecordDecodeFailed: "Stored strategy record could not be decoded",

	// Orders
	OrderFilled:   "Paper order filled",
	OrderRejected: "Paper order rejected",
	RiskRejected:  "Entry rejected by risk limits",

	// Live trading
	TraderStarted:       "Trader started",
	TraderStopped:       "Trader stopped",
	TraderReplaced:      "Replacing running trader",
	TraderHistoryFailed: "Failed to load history",
	TraderHistoryLoaded: "History loaded, bars",
	TraderPollFailed:    "Failed to poll new bars",
	TraderNoSignal:      "No signal, window bars",
	TraderSignal:        "Signal",
	TraderSignalSkipped: "Signal skipped for current position",
	TraderOrderFilled:   "Order filled",
	TraderPersistFailed: "Failed to persist live signal",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:          "啟動策略實驗室",
	ConfigLoaded:      "設定已載入",
	UsingDBPath:       "使用資料庫路徑",
	ServerListening:   "服務監聽中",
	ShuttingDown:      "正在優雅關閉...",
	ShutdownComplete:  "已完成關閉",
	ConfigLoadFailed:  "讀取設定失敗",
	LoggerInitFailed:  "初始化日誌失敗",
	DBInitFailed:      "初始化資料庫失敗",
	PresetsLoaded:     "策略預設參數已載入",
	PresetsLoadFailed: "讀取策略預設參數失敗，改用預設值",
	DataSourceReady:   "行情資料來源已就緒",
	MonitorStarted:    "監控已啟動",
	APIServerError:    "API 伺服器錯誤",
	TokenIssued:       "API 權杖已簽發",
	BarsExported:      "K 線已匯出",
	CacheEvicted:      "已清除過期的 K 線快取",
	DataSourceDown:    "無法連線行情資料來源",

	// Optimizer
	OptimizerCandidateFailed:  "候選參數評估失敗",
	OptimizerValidationFailed: "驗證回測失敗",
	OptimizerGridStart:        "網格搜尋開始",
	OptimizerGridDone:         "網格搜尋完成",
	OptimizerGeneration:       "世代評估完成",
	OptimizerGeneticDone:      "遺傳演算法搜尋完成",

	// Engine
	BacktestDone:       "回測完成",
	OptimizeStart:      "開始參數最佳化",
	RetrainStart:       "重新訓練策略",
	RecordSaved:        "策略紀錄已保存",
	RecordDecodeFailed: "無法解析已保存的策略紀錄",

	// Orders
	OrderFilled:   "模擬委託已成交",
	OrderRejected: "模擬委託被拒絕",
	RiskRejected:  "風控限制拒絕進場",

	// Live trading
	TraderStarted:       "交易員已啟動",
	TraderStopped:       "交易員已停止",
	TraderReplaced:      "取代執行中的交易員",
	TraderHistoryFailed: "載入歷史資料失敗",
	TraderHistoryLoaded: "歷史資料已載入，K 棒數",
	TraderPollFailed:    "輪詢新 K 棒失敗",
	TraderNoSignal:      "無訊號，視窗 K 棒數",
	TraderSignal:        "訊號",
	TraderSignalSkipped: "訊號與目前部位不符，已略過",
	TraderOrderFilled:   "委託已成交",
	TraderPersistFailed: "保存即時訊號失敗",
}

func init() {
	messages = &messagesEN
}

// ParseLanguage maps a config value onto a supported language.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zh", "zh-tw", "zh_tw", "zh-hant":
		return LangZH
	default:
		return LangEN
	}
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		currentLang = LangEN
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
