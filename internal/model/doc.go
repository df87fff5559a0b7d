// Package model defines the core data structures used throughout
// the model-downloader application.
//
// # Model
//
// Model represents a catalog entry with metadata and a computed folder:
//
//	m := model.NewModel("TheBloke", "Mistral-7B-Instruct", "TheBloke/Mistral-7B-Instruct", pathConfig)
//	fmt.Println(m.Path) // Where files of this model are saved
//
// # File
//
// File represents a single downloadable artifact of a model:
//
//	f := model.NewFile(m, "mistral-7b.Q4_K_M.gguf", downloadURL, "Q4_K_M", meta, pathConfig)
//	fmt.Println(f.Path) // Full path where the file will be saved
//	fmt.Println(f.ID()) // "TheBloke/Mistral-7B-Instruct/mistral-7b.Q4_K_M.gguf"
//
// # File Identity
//
// FileID is the comparable key for a downloadable file (model + file pair).
// It is immutable and used as the map key for download bookkeeping.
//
// # Path Configuration
//
// PathConfig controls how folder and file paths are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:  "/models/{author}/{model}",
//	    FileNameFormat: "{file}",
//	}
//
// Available placeholders: {author}, {model}, {file}, {quant}
package model
