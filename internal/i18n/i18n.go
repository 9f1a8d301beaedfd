// Package i18n resolves localized strings for the transcript workflow.
// Catalogs are compiled in; locale negotiation uses golang.org/x/text.
package i18n

import (
	"golang.org/x/text/language"
)

// Translation keys used by the transcript workflow.
const (
	KeyTranscript        = "Transcript"
	KeyConversationLead  = "Transcript_of_your_livechat_conversation"
	KeyGenerated         = "Transcript_Generated"
	KeyGenerationFailed  = "Transcript_Generation_Failed"
	KeyAgent             = "Agent"
	KeyCustomer          = "Customer"
	KeyVisitor           = "Visitor"
	KeyDate              = "Date"
	KeyTime              = "Time"
	KeyUnsupportedAttach = "Unsupported_Attachment"
)

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		KeyTranscript:        "Transcript",
		KeyConversationLead:  "Here is the transcript of your conversation",
		KeyGenerated:         "Your conversation transcript is ready: %s",
		KeyGenerationFailed:  "Your conversation transcript could not be generated: %s",
		KeyAgent:             "Agent",
		KeyCustomer:          "Customer",
		KeyVisitor:           "Visitor",
		KeyDate:              "Date",
		KeyTime:              "Time",
		KeyUnsupportedAttach: "This attachment is not supported",
	},
	language.Chinese: {
		KeyTranscript:        "聊天记录",
		KeyConversationLead:  "这是您本次会话的聊天记录",
		KeyGenerated:         "您的会话转录已生成：%s",
		KeyGenerationFailed:  "您的会话转录生成失败：%s",
		KeyAgent:             "客服",
		KeyCustomer:          "客户",
		KeyVisitor:           "访客",
		KeyDate:              "日期",
		KeyTime:              "时间",
		KeyUnsupportedAttach: "不支持的附件类型",
	},
}

var supported = []language.Tag{
	language.English, // first = fallback
	language.Chinese,
}

var matcher = language.NewMatcher(supported)

// Translator resolves strings either in the server language or a caller locale.
type Translator struct {
	serverTag language.Tag
}

// New constructs a Translator; serverLanguage falls back to English when
// the tag cannot be parsed or is not supported.
func New(serverLanguage string) *Translator {
	return &Translator{serverTag: match(serverLanguage)}
}

func match(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	_, index, _ := matcher.Match(tag)
	return supported[index]
}

// TranslateToServerLanguage resolves key in the configured server language.
func (t *Translator) TranslateToServerLanguage(key string) string {
	return lookup(t.serverTag, key)
}

// Translate resolves key in the given user locale, falling back to the
// server language for unknown locales and to the key itself for unknown keys.
func (t *Translator) Translate(key, lang string) string {
	if lang == "" {
		return t.TranslateToServerLanguage(key)
	}
	return lookup(match(lang), key)
}

func lookup(tag language.Tag, key string) string {
	if catalog, ok := catalogs[tag]; ok {
		if value, ok := catalog[key]; ok {
			return value
		}
	}
	if value, ok := catalogs[language.English][key]; ok {
		return value
	}
	return key
}
