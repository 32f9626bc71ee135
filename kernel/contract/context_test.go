package contract

import (
	"testing"

	"github.com/xuperchain/xreplay/lib/numeric"
)

func TestResponse_HasError(t *testing.T) {
	type fields struct {
		Status  int
		Message string
		Body    []byte
	}
	tests := []struct {
		name   string
		fields fields
		want   bool
	}{
		{
			name: "no error",
			fields: fields{
				Status: StatusOK,
			},
			want: false,
		},
		{
			name: "threshold error",
			fields: fields{
				Status: StatusErrorThreshold,
			},
			want: true,
		},
		{
			name: "normal error",
			fields: fields{
				Status: StatusError,
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{
				Status:  tt.fields.Status,
				Message: tt.fields.Message,
				Body:    tt.fields.Body,
			}
			if got := r.HasError(); got != tt.want {
				t.Errorf("Response.HasError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponseHelpers(t *testing.T) {
	if got := string(OKInt(numeric.NewInt(21000000)).Body); got != "21000000" {
		t.Errorf("OKInt body %s", got)
	}
	if got := string(OKBool(true).Body); got != "true" {
		t.Errorf("OKBool body %s", got)
	}
	resp, err := OKJSON(map[string]string{"token0": "100"})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != `{"token0":"100"}` || resp.Status != StatusOK {
		t.Errorf("OKJSON %s", resp.Body)
	}
}
