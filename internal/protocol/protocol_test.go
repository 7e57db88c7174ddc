package protocol

import (
	"testing"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{"init", `{"event":"init"}`, Init{}},
		{"init with instance", `{"event":"init","instance":"abc"}`, Init{Instance: "abc"}},
		{"save", `{"event":"save","xml":"<mxGraphModel/>","exit":false}`, Save{XML: "<mxGraphModel/>"}},
		{"export data", `{"event":"export","format":"xmlsvg","data":"data:image/svg+xml;base64,PHN2Zy8+","xml":"<m/>"}`,
			ExportReply{Format: "xmlsvg", Data: "data:image/svg+xml;base64,PHN2Zy8+", XML: "<m/>"}},
		{"export xml only", `{"event":"export","format":"xml","xml":"<m/>"}`, ExportReply{Format: "xml", XML: "<m/>"}},
		{"change", `{"event":"change","xml":"<m/>","instance":"i"}`, Change{Instance: "i", XML: "<m/>"}},
		{"change without xml", `{"event":"change"}`, Change{}},
		{"autosave", `{"event":"autosave","xml":"<m/>","modified":true}`, Change{XML: "<m/>", Autosave: true}},
		{"exit", `{"event":"exit","modified":true}`, Exit{Modified: true}},
		{"unknown fields ignored", `{"event":"exit","scale":1.5,"bounds":{"x":0}}`, Exit{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty body", "", errors.ErrMalformed},
		{"whitespace", "  \n", errors.ErrMalformed},
		{"not json", "hello", errors.ErrMalformed},
		{"json array", `["init"]`, errors.ErrMalformed},
		{"missing event", `{"xml":"<m/>"}`, errors.ErrMalformed},
		{"empty event", `{"event":""}`, errors.ErrMalformed},
		{"non-string event", `{"event":3}`, errors.ErrMalformed},
		{"non-string xml", `{"event":"change","xml":{"a":1}}`, errors.ErrMalformed},
		{"unknown event", `{"event":"openLink","href":"x"}`, errors.ErrUnknownEvent},
		{"editor load echo", `{"event":"load","xml":"<m/>"}`, errors.ErrUnknownEvent},
		{"export without payload", `{"event":"export","format":"xmlsvg"}`, errors.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatalf("Parse() = %#v, want error", msg)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_Event(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Init{}, EventInit},
		{Save{}, EventSave},
		{ExportReply{}, EventExport},
		{Change{}, EventChange},
		{Change{Autosave: true}, EventAutosave},
		{Exit{}, EventExit},
	}

	for _, tt := range tests {
		if got := tt.msg.Event(); got != tt.want {
			t.Errorf("%T.Event() = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		msg  Outbound
		want string
	}{
		{"load", Load{XML: `<mxGraphModel><root><mxCell id="0"/></root></mxGraphModel>`, Autosave: true},
			`{"action":"load","xml":"<mxGraphModel><root><mxCell id=\"0\"/></root></mxGraphModel>","autosave":1}`},
		{"load without autosave", Load{XML: "<m/>"}, `{"action":"load","xml":"<m/>"}`},
		{"load empty xml", Load{Autosave: true}, `{"action":"load","xml":"","autosave":1}`},
		{"export svg", ExportRequest{Format: "xmlsvg", XML: true, Empty: true}, `{"action":"export","format":"xmlsvg","xml":1,"empty":1}`},
		{"export xml", ExportRequest{Format: "xml"}, `{"action":"export","format":"xml"}`},
		{"status", Status{Message: "Saved drawio/a.drawio.svg"}, `{"action":"status","message":"Saved drawio/a.drawio.svg","modified":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncode_RequiresFormat(t *testing.T) {
	if _, err := Encode(ExportRequest{XML: true}); !errors.Is(err, errors.ErrInvalidPayload) {
		t.Errorf("Encode() error = %v, want ErrInvalidPayload", err)
	}
}
