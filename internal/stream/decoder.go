// Package stream decodifica el protocolo de respuesta del pipeline de
// consulta: texto de respuesta en claro seguido, como mucho una vez, de
// un payload JSON de procedencia delimitado por marcadores literales.
package stream

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"nexus-rag/internal/domain"
)

// Marcadores literales del protocolo. El transporte puede cortarlos en
// cualquier punto, incluso a mitad de marcador.
const (
	StartMarker = "__PROVENANCE_START__"
	EndMarker   = "__PROVENANCE_END__"
)

type state int

const (
	// stateText: acumulando texto visible, buscando StartMarker.
	stateText state = iota
	// statePayload: todo fragmento entrante es payload estructurado.
	statePayload
)

// Decoder es la máquina de estados que demultiplexa el stream. No tiene
// locking interno: el lector de stream procesa un fragmento a la vez.
type Decoder struct {
	state   state
	visible strings.Builder
	payload strings.Builder
	// carry retiene un sufijo no emitido que podría ser el comienzo de
	// StartMarker (o una runa UTF-8 incompleta) partido entre fragmentos.
	carry  string
	logger *zap.Logger
}

// NewDecoder construye un decoder en estado inicial.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Feed procesa un fragmento y devuelve el texto visible acumulado hasta
// ahora. El segundo valor indica si este fragmento aportó texto visible
// nuevo; el acumulado es siempre la respuesta completa hasta el momento,
// nunca un delta.
func (d *Decoder) Feed(fragment string) (string, bool) {
	if fragment == "" {
		return d.visible.String(), false
	}
	if d.state == statePayload {
		d.payload.WriteString(fragment)
		return d.visible.String(), false
	}

	buf := d.carry + fragment
	d.carry = ""

	if idx := strings.Index(buf, StartMarker); idx >= 0 {
		// Primer marcador gana: de aquí en adelante todo es payload,
		// incluidas ocurrencias posteriores del marcador.
		d.visible.WriteString(buf[:idx])
		d.payload.WriteString(buf[idx+len(StartMarker):])
		d.state = statePayload
		return d.visible.String(), idx > 0
	}

	hold := markerHoldback(buf)
	if hold == 0 {
		hold = incompleteRuneHoldback(buf)
	}
	emit := buf[:len(buf)-hold]
	d.carry = buf[len(buf)-hold:]
	if emit == "" {
		return d.visible.String(), false
	}
	d.visible.WriteString(emit)
	return d.visible.String(), true
}

// Finish cierra el stream: devuelve el texto visible final y las citas
// decodificadas. Un payload malformado no es fatal: se registra y se
// devuelve la respuesta sin citas.
func (d *Decoder) Finish() (string, []domain.Citation) {
	if d.state == stateText {
		// El sufijo retenido nunca llegó a ser marcador: es texto.
		if d.carry != "" {
			d.visible.WriteString(d.carry)
			d.carry = ""
		}
		return d.visible.String(), nil
	}

	raw := d.payload.String()
	if i := strings.LastIndex(raw, EndMarker); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d.visible.String(), nil
	}

	var payload provenancePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		d.logger.Warn("provenance payload parse failed", zap.Error(err))
		return d.visible.String(), nil
	}

	citations := make([]domain.Citation, 0, len(payload.Provenance))
	for _, w := range payload.Provenance {
		citations = append(citations, domain.Citation{
			FileName:       w.FileName,
			Page:           int(w.Page),
			ChunkID:        w.ChunkID,
			RelevanceScore: w.RelevanceScore,
		})
	}
	return d.visible.String(), citations
}

// markerHoldback devuelve cuántos bytes del final de buf coinciden con un
// prefijo propio de StartMarker y deben esperar al siguiente fragmento.
func markerHoldback(buf string) int {
	max := len(StartMarker) - 1
	if len(buf) < max {
		max = len(buf)
	}
	for k := max; k > 0; k-- {
		if strings.HasPrefix(StartMarker, buf[len(buf)-k:]) {
			return k
		}
	}
	return 0
}

// incompleteRuneHoldback detecta una secuencia UTF-8 multibyte truncada
// al final de buf, para no emitir bytes que corromperían el texto.
func incompleteRuneHoldback(buf string) int {
	for i := 1; i <= 3 && i <= len(buf); i++ {
		b := buf[len(buf)-i]
		if b < 0x80 {
			return 0
		}
		if b >= 0xC0 {
			var need int
			switch {
			case b >= 0xF0:
				need = 4
			case b >= 0xE0:
				need = 3
			default:
				need = 2
			}
			if need > i {
				return i
			}
			return 0
		}
	}
	return 0
}

type provenancePayload struct {
	Provenance []wireCitation `json:"provenance"`
}

type wireCitation struct {
	FileName       string     `json:"file_name"`
	Page           pageNumber `json:"page"`
	ChunkID        string     `json:"chunk_id"`
	RelevanceScore float64    `json:"relevance_score"`
}

// pageNumber acepta tanto números como strings numéricos: el backend de
// referencia emitía la página en ambas formas.
type pageNumber int

func (p *pageNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*p = pageNumber(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*p = pageNumber(int(f))
	return nil
}
