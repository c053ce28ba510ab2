package telephony

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"time"

	"agri-ivr/internal/ivr"
)

// Dialect is one gateway's markup flavor. The controller output is the same
// for every gateway; only serialization differs.
type Dialect struct {
	Name        string
	ContentType string
	// AnswerProbes makes GET/OPTIONS return a 200 health text instead of 405.
	AnswerProbes bool

	verbs func(r ivr.Reply, g GatherOptions) []any
}

// GatherOptions parameterize the listen directive.
type GatherOptions struct {
	// Action is where the gateway posts the next turn. Empty means the same URL.
	Action   string
	Timeout  time.Duration
	Language string
}

const DefaultGatherTimeout = 5 * time.Second

func (g GatherOptions) timeoutSeconds() string {
	secs := int(g.Timeout / time.Second)
	if secs <= 0 {
		secs = int(DefaultGatherTimeout / time.Second)
	}
	return strconv.Itoa(secs)
}

type xmlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type xmlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type xmlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Twilio-style: speech is nested inside Gather.
type xmlGather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr,omitempty"`
	Method              string   `xml:"method,attr"`
	Timeout             string   `xml:"timeout,attr"`
	SpeechTimeout       string   `xml:"speechTimeout,attr"`
	Language            string   `xml:"language,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr"`
	Say                 xmlSay
}

// Exotel-style: GetSpeech follows the speech.
type xmlGetSpeech struct {
	XMLName     xml.Name `xml:"GetSpeech"`
	Action      string   `xml:"action,attr,omitempty"`
	Method      string   `xml:"method,attr"`
	Timeout     string   `xml:"timeout,attr"`
	Language    string   `xml:"language,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr"`
}

var Twilio = Dialect{
	Name:        "twilio",
	ContentType: "text/xml",
	verbs: func(r ivr.Reply, g GatherOptions) []any {
		say := xmlSay{Language: g.Language, Text: r.Message}
		if r.Hangup || !r.Gather {
			return closing(say, r.Hangup)
		}
		return []any{xmlGather{
			Input:               "speech dtmf",
			Action:              g.Action,
			Method:              "POST",
			Timeout:             g.timeoutSeconds(),
			SpeechTimeout:       "auto",
			Language:            g.Language,
			ActionOnEmptyResult: true,
			Say:                 say,
		}}
	},
}

var Exotel = Dialect{
	Name:         "exotel",
	ContentType:  "application/xml",
	AnswerProbes: true,
	verbs: func(r ivr.Reply, g GatherOptions) []any {
		say := xmlSay{Language: g.Language, Text: r.Message}
		if r.Hangup || !r.Gather {
			return closing(say, r.Hangup)
		}
		return []any{say, xmlGetSpeech{
			Action:      g.Action,
			Method:      "POST",
			Timeout:     g.timeoutSeconds(),
			Language:    g.Language,
			FinishOnKey: "#",
		}}
	},
}

func closing(say xmlSay, hangup bool) []any {
	if hangup {
		return []any{say, xmlHangup{}}
	}
	return []any{say}
}

// Render serializes a controller reply. Text is XML-escaped, so
// & < > " ' in the message are safe.
func (d Dialect) Render(r ivr.Reply, g GatherOptions) (string, error) {
	doc := xmlResponse{Verbs: d.verbs(r, g)}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackMarkup is written when rendering itself fails.
const fallbackMarkup = xml.Header + "<Response><Say>" + ivr.PromptSystemError + "</Say><Hangup></Hangup></Response>"
