package hacienda

// Environment selects which authority host a request goes to.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// Code returns the ambiente code the reception API expects in payloads.
func (e Environment) Code() string {
	if e == EnvironmentProduction {
		return "01"
	}
	return "00"
}

func (e Environment) Valid() bool {
	return e == EnvironmentTest || e == EnvironmentProduction
}

// Credentials are the tenant's authority API credentials, looked up per
// environment by the credential provider collaborator.
type Credentials struct {
	User     string
	Password string
}

// Outcome classifies an authority response. The client classifies; the
// worker decides what to do about it.
type Outcome string

const (
	// OutcomeAccepted means the authority processed the document and
	// returned an acknowledgment stamp
	OutcomeAccepted Outcome = "accepted"

	// OutcomeRejected means the authority explicitly rejected the document
	// for a business reason; never retried
	OutcomeRejected Outcome = "rejected"

	// OutcomeTransient means network failure, timeout, 5xx or an explicit
	// try-later status; retryable under the worker's backoff policy
	OutcomeTransient Outcome = "transient"

	// OutcomeTokenExpired means the authority signalled the bearer token
	// specifically is stale; the worker forces one token refresh
	OutcomeTokenExpired Outcome = "token_expired"
)

// Result is the classified outcome of a submission-style call.
type Result struct {
	Outcome        Outcome
	Stamp          string // selloRecibido, set only when accepted
	Code           string // codigoMsg
	Description    string // descripcionMsg
	Observations   []string
	ProcessedAt    string // fhProcesamiento as reported by the authority
	HTTPStatus     int
	RawBody        string
}

// authResponse mirrors the /seguridad/auth envelope.
type authResponse struct {
	Status string `json:"status"`
	Body   struct {
		Token string   `json:"token"`
		Roles []string `json:"roles"`
	} `json:"body"`
	Error string `json:"error"`
}

// ReceptionRequest is the envelope for single-document submission.
type ReceptionRequest struct {
	Ambiente    string `json:"ambiente"`
	IDEnvio     int64  `json:"idEnvio"`
	Version     int    `json:"version"`
	TipoDte     string `json:"tipoDte"`
	Documento   string `json:"documento"`
}

// BatchReceptionRequest is the envelope for lot submission.
type BatchReceptionRequest struct {
	Ambiente   string   `json:"ambiente"`
	IDEnvio    int64    `json:"idEnvio"`
	Version    int      `json:"version"`
	NitEmisor  string   `json:"nitEmisor"`
	Documentos []string `json:"documentos"`
}

// VoidRequest is the envelope for document invalidation.
type VoidRequest struct {
	Ambiente  string `json:"ambiente"`
	IDEnvio   int64  `json:"idEnvio"`
	Version   int    `json:"version"`
	Documento string `json:"documento"`
}

// ContingencyRequest reports a contingency event to the authority.
type ContingencyRequest struct {
	NIT       string `json:"nit"`
	Documento string `json:"documento"`
}

// receptionResponse mirrors the reception API result envelope.
type receptionResponse struct {
	Estado           string   `json:"estado"`
	SelloRecibido    string   `json:"selloRecibido"`
	FhProcesamiento  string   `json:"fhProcesamiento"`
	ClasificaMsg     string   `json:"clasificaMsg"`
	CodigoMsg        string   `json:"codigoMsg"`
	DescripcionMsg   string   `json:"descripcionMsg"`
	Observaciones    []string `json:"observaciones"`
}

// StatusQuery holds the authority's answer to a consultadte lookup.
type StatusQuery struct {
	Estado          string `json:"estado"`
	SelloRecibido   string `json:"selloRecibido"`
	FhProcesamiento string `json:"fhProcesamiento"`
	DescripcionMsg  string `json:"descripcionMsg"`
}
