package packs

// Catalog is a static in-memory breed source.
type Catalog []Breed

func (c Catalog) Random(r Rand) Breed {
	return c[r.Intn(len(c))]
}

// DefaultCatalog is the launch breed set.
var DefaultCatalog = Catalog{
	{"Golden Retriever", "Friendly family dog with a feathered golden coat"},
	{"Labrador Retriever", "Even-tempered water dog, the classic first pick"},
	{"German Shepherd", "Confident working dog with a wolfish profile"},
	{"French Bulldog", "Compact bat-eared companion with a stubborn streak"},
	{"Beagle", "Merry scent hound that follows its nose anywhere"},
	{"Poodle", "Sharp-witted curly-coated athlete in three sizes"},
	{"Shiba Inu", "Fox-faced spitz with a famously independent mind"},
	{"Siberian Husky", "Tireless sled dog with piercing eyes"},
	{"Corgi", "Low-slung herder with outsized confidence"},
	{"Border Collie", "The workaholic of the dog world, eyes always on the flock"},
	{"Dachshund", "Long-bodied badger hound, equal parts brave and comic"},
	{"Akita", "Dignified guardian breed from northern Japan"},
	{"Great Dane", "Gentle giant that forgets its own size"},
	{"Pug", "Wrinkled charmer bred for a thousand years of lap duty"},
	{"Samoyed", "Smiling white cloud built for arctic work"},
	{"Australian Shepherd", "Merle-coated ranch dog that never runs out of energy"},
}
