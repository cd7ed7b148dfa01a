package render

// Token — закрытый словарь плейсхолдеров шаблона сертификата.
type Token int

const (
	TokenUnknown Token = iota
	TokenName
	TokenDate
	TokenEvent
	TokenCertificateNumber
	TokenScore
	TokenTrainingType
)

var tokenByName = map[string]Token{
	"name":               TokenName,
	"date":               TokenDate,
	"event":              TokenEvent,
	"certificate_number": TokenCertificateNumber,
	"score":              TokenScore,
	"training_type":      TokenTrainingType,
}

var nameByToken = map[Token]string{
	TokenName:              "name",
	TokenDate:              "date",
	TokenEvent:             "event",
	TokenCertificateNumber: "certificate_number",
	TokenScore:             "score",
	TokenTrainingType:      "training_type",
}

// ParseToken распознаёт имя между фигурными скобками. Регистр и пробелы значимы.
func ParseToken(s string) Token {
	if t, ok := tokenByName[s]; ok {
		return t
	}
	return TokenUnknown
}

func (t Token) String() string {
	if s, ok := nameByToken[t]; ok {
		return s
	}
	return "unknown"
}

// Placeholder — запись токена в шаблоне, например "{name}".
func (t Token) Placeholder() string { return "{" + t.String() + "}" }

// Tokens — все распознаваемые токены в фиксированном порядке.
func Tokens() []Token {
	return []Token{TokenName, TokenDate, TokenEvent, TokenCertificateNumber, TokenScore, TokenTrainingType}
}

// Context — значения для подстановки. Экранирование делает рендерер.
type Context struct {
	Name              string `json:"name"`
	Date              string `json:"date"`
	Event             string `json:"event"`
	CertificateNumber string `json:"certificate_number"`
	Score             string `json:"score"`
	TrainingType      string `json:"training_type"`
}

func (c Context) value(t Token) string {
	switch t {
	case TokenName:
		return c.Name
	case TokenDate:
		return c.Date
	case TokenEvent:
		return c.Event
	case TokenCertificateNumber:
		return c.CertificateNumber
	case TokenScore:
		return c.Score
	case TokenTrainingType:
		return c.TrainingType
	default:
		return ""
	}
}
