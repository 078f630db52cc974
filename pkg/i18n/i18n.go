package i18n

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Language type
type Language string

const (
	LangES Language = "es"
	LangEN Language = "en"
)

// Parse maps a configuration value to a supported language, defaulting to Spanish.
func Parse(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(LangEN)) {
		return LangEN
	}
	return LangES
}

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	ShuttingDown       string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	APIServerError     string
	RedisConnected     string
	RedisUnavailable   string
	OperatorSeeded     string
	CacheInvalidated   string
	AuditWriteFailed   string

	// Rule form validation
	NameRequired             string
	InvalidRuleType          string
	InvalidSeverity          string
	InvalidNumber            string
	MinDurationPositive      string
	MinFactorPositive        string
	MaxFactorPositive        string
	MaxFactorGreater         string
	LookbackPositive         string
	TimeWindowPositive       string
	MaxOpenTradesPositive    string
	MinOpenTradesNegative    string
	MinOpenTradesLess        string
	IncidentsBeforeActionMin string

	// Action form validation
	InvalidActionType    string
	ActionConfigRequired string
	EmailRequired        string
	ChannelRequired      string
	ReasonRequired       string
	DefaultDisableReason string

	// Toasts
	RuleCreated         string
	RuleCreateFailed    string
	RuleUpdated         string
	RuleUpdateFailed    string
	RuleDeleted         string
	RuleDeleteFailed    string
	RuleToggled         string
	RuleToggleFailed    string
	ActionAdded         string
	ActionAddFailed     string
	TradingEnabled      string
	TradingDisabled     string
	TradingToggleFailed string
	IncidentResolved    string
	IncidentResolveFail string
	LoginFailed         string

	// Labels
	Enabled         string
	Disabled        string
	Active          string
	Inactive        string
	Retry           string
	ClearFilters    string
	LoadError       string
	AccountNotFound string
	RuleNotFound    string
	PageOf          string
	ShowingAccounts string
	ShowingTrades   string
	TotalIncidents  string
	NoDescription   string
	NoRiskData      string
	NoConfig        string
	NotSpecified    string
	SeverityHigh    string
	SeverityMedium  string
	HardRule        string
	SoftRule        string
	Open            string
	Closed          string
	Buy             string
	Sell            string
	RiskLabel       string
	NoIncidents     string
	NoTrades        string
	NoAccounts      string
	NoRules         string
	Resolved        string
	Pending         string

	// Actions
	ActionEmailLabel          string
	ActionSlackLabel          string
	ActionDisableAccountLabel string
	ActionDisableTradingLabel string
	ActionSendTo              string
	ActionChannel             string
	ActionReason              string
}

var (
	currentLang Language = LangES
	mu          sync.RWMutex
	messages    *Messages
)

// Spanish messages
var messagesES = Messages{
	// System
	Starting:           "Iniciando consola de riesgo...",
	ConfigLoaded:       "Configuración cargada (puerto %s)",
	UsingDBPath:        "Usando base de datos: %s",
	ServerListening:    "Servidor escuchando en %s",
	ShuttingDown:       "Apagando...",
	ConfigLoadFailed:   "No se pudo cargar la configuración: %v",
	DBInitFailed:       "No se pudo abrir la base de datos: %v",
	DBMigrationsFailed: "No se pudieron aplicar las migraciones: %v",
	APIServerError:     "Error del servidor HTTP: %v",
	RedisConnected:     "Caché compartida en Redis %s",
	RedisUnavailable:   "Redis %s no disponible, usando caché en memoria: %v",
	OperatorSeeded:     "Operador %s registrado",
	CacheInvalidated:   "Caché invalidada",
	AuditWriteFailed:   "No se pudo registrar la auditoría",

	// Rule form validation
	NameRequired:             "El nombre es requerido",
	InvalidRuleType:          "Tipo de regla inválido",
	InvalidSeverity:          "Severidad inválida",
	InvalidNumber:            "Debe ser un número válido",
	MinDurationPositive:      "La duración mínima debe ser mayor a 0",
	MinFactorPositive:        "El factor mínimo debe ser mayor a 0",
	MaxFactorPositive:        "El factor máximo debe ser mayor a 0",
	MaxFactorGreater:         "El factor máximo debe ser mayor al mínimo",
	LookbackPositive:         "Debe considerar al menos 1 trade histórico",
	TimeWindowPositive:       "La ventana de tiempo debe ser mayor a 0",
	MaxOpenTradesPositive:    "El máximo de trades debe ser mayor a 0",
	MinOpenTradesNegative:    "El mínimo de trades no puede ser negativo",
	MinOpenTradesLess:        "El mínimo debe ser menor al máximo",
	IncidentsBeforeActionMin: "Debe requerir al menos 1 incidente antes de actuar",

	// Action form validation
	InvalidActionType:    "Tipo de acción inválido",
	ActionConfigRequired: "Por favor, completa la configuración",
	EmailRequired:        "Por favor, ingresa un email válido",
	ChannelRequired:      "Por favor, ingresa un canal de Slack",
	ReasonRequired:       "Por favor, ingresa una razón",
	DefaultDisableReason: "Incumplimiento de regla",

	// Toasts
	RuleCreated:         "Nueva regla creada exitosamente",
	RuleCreateFailed:    "Error al crear la regla. Intenta nuevamente.",
	RuleUpdated:         "Regla actualizada correctamente",
	RuleUpdateFailed:    "Error al actualizar la regla. Intenta nuevamente.",
	RuleDeleted:         "Regla eliminada correctamente",
	RuleDeleteFailed:    "Error al eliminar la regla",
	RuleToggled:         "Estado de la regla actualizado",
	RuleToggleFailed:    "Error al cambiar el estado de la regla",
	ActionAdded:         "Nueva acción asignada correctamente",
	ActionAddFailed:     "Error al asignar la acción",
	TradingEnabled:      "Trading habilitado",
	TradingDisabled:     "Trading deshabilitado",
	TradingToggleFailed: "Error al cambiar el estado de trading",
	IncidentResolved:    "Incidente resuelto",
	IncidentResolveFail: "Error al resolver el incidente",
	LoginFailed:         "Credenciales inválidas",

	// Labels
	Enabled:         "Habilitado",
	Disabled:        "Deshabilitado",
	Active:          "Activa",
	Inactive:        "Inactiva",
	Retry:           "Reintentar",
	ClearFilters:    "Limpiar filtros",
	LoadError:       "No se pudieron cargar los datos",
	AccountNotFound: "La cuenta con ID %d no existe o no se pudo encontrar.",
	RuleNotFound:    "La regla con ID %d no existe o no se pudo encontrar.",
	PageOf:          "Página %d de %d",
	ShowingAccounts: "Mostrando %d de %d cuentas",
	ShowingTrades:   "Mostrando %d trades",
	TotalIncidents:  "%d incidentes totales",
	NoDescription:   "Esta regla no tiene descripción.",
	NoRiskData:      "No hay datos de riesgo disponibles",
	NoConfig:        "Sin configuración",
	NotSpecified:    "No especificado",
	SeverityHigh:    "Alta",
	SeverityMedium:  "Media",
	HardRule:        "Regla Dura",
	SoftRule:        "Regla Suave",
	Open:            "Abierto",
	Closed:          "Cerrado",
	Buy:             "Compra",
	Sell:            "Venta",
	RiskLabel:       "Riesgo: %s",
	NoIncidents:     "No hay incidentes registrados",
	NoTrades:        "No hay trades registrados",
	NoAccounts:      "No se encontraron cuentas",
	NoRules:         "No se encontraron reglas",
	Resolved:        "Resuelto",
	Pending:         "Pendiente",

	// Actions
	ActionEmailLabel:          "Enviar Email",
	ActionSlackLabel:          "Notificar por Slack",
	ActionDisableAccountLabel: "Deshabilitar Cuenta",
	ActionDisableTradingLabel: "Deshabilitar Trading",
	ActionSendTo:              "Enviar a: %s",
	ActionChannel:             "Canal: %s",
	ActionReason:              "Razón: %s",
}

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting risk console...",
	ConfigLoaded:       "Configuration loaded (port %s)",
	UsingDBPath:        "Using database: %s",
	ServerListening:    "Server listening on %s",
	ShuttingDown:       "Shutting down...",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to open database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	APIServerError:     "HTTP server error: %v",
	RedisConnected:     "Shared cache on Redis %s",
	RedisUnavailable:   "Redis %s unavailable, using in-memory cache: %v",
	OperatorSeeded:     "Operator %s registered",
	CacheInvalidated:   "Cache invalidated",
	AuditWriteFailed:   "Failed to record audit entry",

	// Rule form validation
	NameRequired:             "Name is required",
	InvalidRuleType:          "Invalid rule type",
	InvalidSeverity:          "Invalid severity",
	InvalidNumber:            "Must be a valid number",
	MinDurationPositive:      "Minimum duration must be greater than 0",
	MinFactorPositive:        "Minimum factor must be greater than 0",
	MaxFactorPositive:        "Maximum factor must be greater than 0",
	MaxFactorGreater:         "Maximum factor must be greater than the minimum",
	LookbackPositive:         "Must consider at least 1 historical trade",
	TimeWindowPositive:       "Time window must be greater than 0",
	MaxOpenTradesPositive:    "Maximum trades must be greater than 0",
	MinOpenTradesNegative:    "Minimum trades cannot be negative",
	MinOpenTradesLess:        "Minimum must be less than the maximum",
	IncidentsBeforeActionMin: "At least 1 incident is required before acting",

	// Action form validation
	InvalidActionType:    "Invalid action type",
	ActionConfigRequired: "Please complete the configuration",
	EmailRequired:        "Please enter a valid email",
	ChannelRequired:      "Please enter a Slack channel",
	ReasonRequired:       "Please enter a reason",
	DefaultDisableReason: "Rule violation",

	// Toasts
	RuleCreated:         "New rule created",
	RuleCreateFailed:    "Failed to create the rule. Try again.",
	RuleUpdated:         "Rule updated",
	RuleUpdateFailed:    "Failed to update the rule. Try again.",
	RuleDeleted:         "Rule deleted",
	RuleDeleteFailed:    "Failed to delete the rule",
	RuleToggled:         "Rule status updated",
	RuleToggleFailed:    "Failed to change the rule status",
	ActionAdded:         "New action assigned",
	ActionAddFailed:     "Failed to assign the action",
	TradingEnabled:      "Trading enabled",
	TradingDisabled:     "Trading disabled",
	TradingToggleFailed: "Failed to change trading status",
	IncidentResolved:    "Incident resolved",
	IncidentResolveFail: "Failed to resolve the incident",
	LoginFailed:         "Invalid credentials",

	// Labels
	Enabled:         "Enabled",
	Disabled:        "Disabled",
	Active:          "Active",
	Inactive:        "Inactive",
	Retry:           "Retry",
	ClearFilters:    "Clear filters",
	LoadError:       "Could not load data",
	AccountNotFound: "Account with ID %d does not exist or could not be found.",
	RuleNotFound:    "Rule with ID %d does not exist or could not be found.",
	PageOf:          "Page %d of %d",
	ShowingAccounts: "Showing %d of %d accounts",
	ShowingTrades:   "Showing %d trades",
	TotalIncidents:  "%d total incidents",
	NoDescription:   "This rule has no description.",
	NoRiskData:      "No risk data available",
	NoConfig:        "No configuration",
	NotSpecified:    "Not specified",
	SeverityHigh:    "High",
	SeverityMedium:  "Medium",
	HardRule:        "Hard Rule",
	SoftRule:        "Soft Rule",
	Open:            "Open",
	Closed:          "Closed",
	Buy:             "Buy",
	Sell:            "Sell",
	RiskLabel:       "Risk: %s",
	NoIncidents:     "No incidents recorded",
	NoTrades:        "No trades recorded",
	NoAccounts:      "No accounts found",
	NoRules:         "No rules found",
	Resolved:        "Resolved",
	Pending:         "Pending",

	// Actions
	ActionEmailLabel:          "Send email",
	ActionSlackLabel:          "Notify on Slack",
	ActionDisableAccountLabel: "Disable account",
	ActionDisableTradingLabel: "Disable trading",
	ActionSendTo:              "Send to: %s",
	ActionChannel:             "Channel: %s",
	ActionReason:              "Reason: %s",
}

func init() {
	messages = &messagesES
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangEN:
		messages = &messagesEN
	default:
		currentLang = LangES
		messages = &messagesES
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

// Getf formats the message found under key.
func Getf(key string, args ...any) string {
	return fmt.Sprintf(Get(key), args...)
}
