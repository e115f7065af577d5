package netrpc

import (
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/runtime"
	json "github.com/nikkolasg/hexjson"
)

// HexJSON is the gateway marshaller: plain JSON with byte fields rendered
// as hex rather than base64, so REST consumers see the same encoding the
// diagnostic dumps use.
type HexJSON struct{}

// ContentType always returns "application/json".
func (*HexJSON) ContentType() string { return "application/json" }

// Marshal marshals v into JSON.
func (*HexJSON) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal unmarshals JSON data into v.
func (*HexJSON) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// NewDecoder returns a Decoder which reads a JSON stream from r.
func (*HexJSON) NewDecoder(r io.Reader) runtime.Decoder { return json.NewDecoder(r) }

// NewEncoder returns an Encoder which writes a JSON stream into w.
func (*HexJSON) NewEncoder(w io.Writer) runtime.Encoder { return json.NewEncoder(w) }

// Delimiter for newline encoded JSON streams.
func (*HexJSON) Delimiter() []byte { return []byte("\n") }

var defaultJSONMarshaller runtime.Marshaler = &HexJSON{}

// restPattern builds the gateway pattern for a fixed two-segment path
// /v0/{name} — the hand-written equivalent of what the generated
// Register*HandlerClient calls produce.
func restPattern(name string) runtime.Pattern {
	return runtime.MustPattern(runtime.NewPattern(1,
		[]int{2, 0, 2, 1}, []string{"v0", name}, ""))
}

// RESTHandler bridges the control service to REST/JSON through the
// grpc-gateway runtime, the same bridge the teacher runs next to its gRPC
// listener: GET /v0/ping, GET /v0/status, POST /v0/shutdown.
func RESTHandler(ctl ControlServer) http.Handler {
	gwMux := runtime.NewServeMux(runtime.WithMarshalerOption("*", defaultJSONMarshaller))

	gwMux.Handle("GET", restPattern("ping"),
		func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			out, err := ctl.PingPong(r.Context(), new(Ping))
			respondREST(w, out, err)
		})
	gwMux.Handle("GET", restPattern("status"),
		func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			out, err := ctl.Status(r.Context(), new(StatusRequest))
			respondREST(w, out, err)
		})
	gwMux.Handle("POST", restPattern("shutdown"),
		func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			out, err := ctl.Shutdown(r.Context(), new(ShutdownRequest))
			respondREST(w, out, err)
		})

	restRouter := http.NewServeMux()
	restRouter.Handle("/", gwMux)
	return restRouter
}

func respondREST(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	raw, err := defaultJSONMarshaller.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", defaultJSONMarshaller.ContentType())
	_, _ = w.Write(raw)
}
