package entities

// Modality tags a scratch file with what it holds. Name and Ext make up the file
// name, MimeType is sent along when the file is uploaded.
type Modality struct {
	Name     string
	Ext      string
	MimeType string
}

var (
	ModalityImage  = Modality{Name: "image", Ext: "jpg", MimeType: "image/jpeg"}
	ModalityVoice  = Modality{Name: "audio", Ext: "ogg", MimeType: "audio/ogg"}
	ModalitySpeech = Modality{Name: "audio", Ext: "mp3", MimeType: "audio/mpeg"}
)

func (m Modality) String() string {
	return m.Name + "/" + m.Ext
}
