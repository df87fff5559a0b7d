// Package catalog loads the list of models and their downloadable files,
// and turns a file identity into a download target.
//
// # Catalog Format
//
// A catalog is a JSON document:
//
//	{
//	  "models": [
//	    {
//	      "id": "TheBloke/Mistral-7B-Instruct",
//	      "name": "Mistral 7B Instruct",
//	      "author": "TheBloke",
//	      "updated": "2024-01-31",
//	      "files": [
//	        {
//	          "name": "mistral-7b-instruct.Q4_K_M.gguf",
//	          "url": "https://example.com/mistral-7b-instruct.Q4_K_M.gguf",
//	          "quantization": "Q4_K_M",
//	          "size": 4368439584,
//	          "sha256": "..."
//	        }
//	      ]
//	    }
//	  ]
//	}
//
// A size of zero (or no size) means unknown; ResolveSizes can fill it in
// with HEAD requests before downloads start.
//
// # Lookup
//
//	cat, _ := catalog.Load(ctx, "catalog.json", pathConfig, nil)
//	target, err := cat.Target(id)
//	if errors.Is(err, catalog.ErrUnknownFile) {
//	    // the model exists but has no such file
//	}
package catalog
