// Package forms implements the maintenance form data model: the fixed field
// schema, the resolver that merges the original submission with the analyst's
// edits, and normalization helpers for legacy leaf shapes.
package forms

// Scalar identification fields at the top of the form.
const (
	KeyDominio          = "dominio"
	KeyModeloVehiculo   = "modelo_vehiculo"
	KeyKmActual         = "km_actual"
	KeyCombustibleTipo  = "combustible_tipo"
	KeyFecha            = "fecha"
	KeyDireccion        = "direccion"
	KeyBaseVec          = "base_vec"
	KeyUsuarioConductor = "usuario_conductor"
	KeyGuarda           = "guarda"
)

// Nested checklist sections.
const (
	KeyUltimoService           = "ultimo_service"
	KeyUltimaDistribucion      = "ultima_distribucion"
	KeyDocumentacionSeguridad  = "documentacion_seguridad"
	KeyLuces                   = "luces"
	KeyNeumaticos              = "neumaticos"
	KeyNivelDeLiquidos         = "nivel_de_liquidos"
	KeyFuncionamiento          = "funcionamiento"
	KeyEstadoGeneral           = "estado_general"
	KeyObservacionesFinales    = "observaciones_finales"
)

// fieldsOKKey is the wrapper key some upstream submissions nest their
// validated fields under, alongside pipeline metadata that is not part of
// the form schema.
const fieldsOKKey = "fields_ok"

var scalarKeys = []string{
	KeyDominio,
	KeyModeloVehiculo,
	KeyKmActual,
	KeyCombustibleTipo,
	KeyFecha,
	KeyDireccion,
	KeyBaseVec,
	KeyUsuarioConductor,
	KeyGuarda,
}

var sectionKeys = []string{
	KeyUltimoService,
	KeyUltimaDistribucion,
	KeyDocumentacionSeguridad,
	KeyLuces,
	KeyNeumaticos,
	KeyNivelDeLiquidos,
	KeyFuncionamiento,
	KeyEstadoGeneral,
	KeyObservacionesFinales,
}

var sectionSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(sectionKeys))
	for _, k := range sectionKeys {
		s[k] = struct{}{}
	}
	return s
}()

// SchemaKeys returns every fixed top-level key of the form, scalars first.
func SchemaKeys() []string {
	keys := make([]string, 0, len(scalarKeys)+len(sectionKeys))
	keys = append(keys, scalarKeys...)
	keys = append(keys, sectionKeys...)
	return keys
}

// IsSection reports whether a top-level key denotes a nested checklist section.
func IsSection(key string) bool {
	_, ok := sectionSet[key]
	return ok
}
