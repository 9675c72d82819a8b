package protocol

// Field IDs of the image-available message.
const (
	FieldCameraMask  uint16 = 1
	FieldTimestamp   uint16 = 2
	FieldValidUntil  uint16 = 3
	FieldCameraIndex uint16 = 4
	FieldSequence    uint16 = 5

	FieldRoll  uint16 = 10
	FieldPitch uint16 = 11
	FieldYaw   uint16 = 12

	FieldLatitude    uint16 = 20
	FieldLongitude   uint16 = 21
	FieldAltitude    uint16 = 22
	FieldLocalHeight uint16 = 23

	FieldExposure uint16 = 30
	FieldGain     uint16 = 31
)

// ImageAvailableSchema declares the image-available payload. Only the camera
// mask and the two producer-clock timestamps are mandatory; the same message is
// emitted by producers that carry no pose or exposure data.
var ImageAvailableSchema = Schema{
	MessageType: MessageImageAvailable,
	Fields: []FieldSpec{
		{ID: FieldCameraMask, Type: FieldUint64, Required: true},
		{ID: FieldTimestamp, Type: FieldUint64, Required: true},
		{ID: FieldValidUntil, Type: FieldUint64, Required: true},
		{ID: FieldCameraIndex, Type: FieldInt32},
		{ID: FieldSequence, Type: FieldUint32},
		{ID: FieldRoll, Type: FieldFloat32},
		{ID: FieldPitch, Type: FieldFloat32},
		{ID: FieldYaw, Type: FieldFloat32},
		{ID: FieldLatitude, Type: FieldFloat32},
		{ID: FieldLongitude, Type: FieldFloat32},
		{ID: FieldAltitude, Type: FieldFloat32},
		{ID: FieldLocalHeight, Type: FieldFloat32},
		{ID: FieldExposure, Type: FieldUint32},
		{ID: FieldGain, Type: FieldFloat32},
	},
}
