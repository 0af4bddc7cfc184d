package components

// Body holds physical properties of an entity.
type Body struct {
	Radius   float32
	MaxSpeed float32 // before slows
}
