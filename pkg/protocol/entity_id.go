package protocol

import "fmt"

// EntityID identifies a simulated entity (site, application, entity)
type EntityID struct {
	Site        uint16 `json:"site"`
	Application uint16 `json:"application"`
	Entity      uint16 `json:"entity"`
}

// String formats the id as site:application:entity
func (e EntityID) String() string {
	return fmt.Sprintf("%d:%d:%d", e.Site, e.Application, e.Entity)
}

// AppendTo appends the 6-byte encoding
func (e EntityID) AppendTo(dst []byte) []byte {
	dst = AppendUint16(dst, e.Site)
	dst = AppendUint16(dst, e.Application)
	return AppendUint16(dst, e.Entity)
}

// ReadEntityID reads a 6-byte entity id at offset
func ReadEntityID(data []byte, offset int) (EntityID, int, error) {
	if err := checkField(data, offset, EntityIDSize); err != nil {
		return EntityID{}, 0, err
	}
	site, _, _ := ReadUint16(data, offset)
	app, _, _ := ReadUint16(data, offset+2)
	entity, _, _ := ReadUint16(data, offset+4)
	return EntityID{Site: site, Application: app, Entity: entity}, EntityIDSize, nil
}
