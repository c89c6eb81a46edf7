// Package builtin registers the bundled fixture resources with the catalog.
// Import it for side effects:
//
//	import _ "github.com/JonMunkholm/fakedata/internal/catalog/builtin"
package builtin

import "github.com/JonMunkholm/fakedata/internal/catalog"

func init() {
	catalog.Register(catalog.Definition{
		Key:   "name.female",
		Label: "Female first names",
	})
	catalog.Register(catalog.Definition{
		Key:   "name.male",
		Label: "Male first names",
	})
	catalog.Register(catalog.Definition{
		Key:   "name.surname",
		Label: "Surnames",
	})
	catalog.Register(catalog.Definition{
		Key:   "job.title",
		Label: "Job titles",
	})
	catalog.Register(catalog.Definition{
		Key:   "address.ca.sf.street",
		Group: "address",
		Label: "San Francisco street names",
	})
	catalog.Register(catalog.Definition{
		Key:   "address.ca.sf.zip",
		Group: "address",
		Label: "San Francisco ZIP codes",
	})
}
