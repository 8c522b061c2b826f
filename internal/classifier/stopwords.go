package classifier

import "strings"

// DefaultLanguage is used when an unknown language code is configured.
const DefaultLanguage = "de"

// stopwordLists holds one space-separated word list per supported language.
// The lists are common function words used purely as a cheap plausibility
// signal, not as a full language model.
var stopwordLists = map[string]string{
	"de": `aber alle allem allen aller alles als also am an ander andere anderem anderen anderer anderes anderm andern anderr anders auch auf aus bei bin bis bist da damit dann das dass daß dein deine deinem deinen deiner deines dem den denn der des dessen deshalb die dies diese diesem diesen dieser dieses doch dort du durch ein eine einem einen einer eines einmal er es etwas euer eure eurem euren eurer eures für gegen gewesen habe haben hat hatte hatten hier hin hinter ich ihm ihn ihr ihre ihrem ihren ihrer ihres im in indem ins ist ja jede jedem jeden jeder jedes jene jenem jenen jener jenes jetzt kann kein keine keinem keinen keiner keines können könnte machen man manche manchem manchen mancher manches mein meine meinem meinen meiner meines mich mir mit muss musste nach nicht nichts noch nun nur ob oder ohne sehr sein seine seinem seinen seiner seines selbst sich sie sind so solche solchem solchen solcher solches soll sollen sollte sondern sonst um und uns unse unser unsere unserem unseren unserer unseres unter viel vom von vor war waren warst was weg weil weiter welche welchem welchen welcher welches wenn wer werde werden wie wieder wir wird wirst wo wollen wollte während würde würden zu zum zur zwar zwischen`,
	"en": `a about above after again against all am an and any are as at be because been before being below between both but by can could did do does doing down during each few for from further had has have having he her here hers herself him himself his how i if in into is it its itself just me more most my myself no nor not now of off on once only or other ought our ours ourselves out over own same she should so some such than that the their theirs them themselves then there these they this those through to too under until up very was we were what when where which while who whom why with would you your yours yourself yourselves actually already also anyway couldnt didnt doesnt dont every everyone everything isnt maybe please really something thanks wasnt without`,
	"fr": `alors au aucuns aussi autre avant avec avoir bon car ce cela ces ceux chaque ci comme comment dans des du dedans dehors depuis deux doit donc dos droite début elle elles en encore essai est et eu fait faites fois font hors ici il ils je juste la le les leur là ma maintenant mais mes mine moins mon mot même ne ni nommés notre nous ou où par parce pas peut peu plupart pour pourquoi quand que quel quelle quelles quels qui sa sans ses seulement si sien son sont sous soyez sur ta tandis tellement tels tes ton tous tout trop très tu voient vont votre vous vu ça étaient état étiez été être assez beaucoup combien était faisait faisaient`,
	"es": `al ante antes año años aquel aquellas aquellos aqui arriba atras aun aunque bajo bien cabe cada casi cierto como con conseguimos conseguir consigo consigue consiguen consigues cual cuando dentro desde donde dos el ellas ellos empleais emplean emplear empleas empleo en encima entonces entre era eramos eran eras eres es esa esas ese esos esta estaba estado estais estamos estan estar este esto estos estoy fue fueron fui fuimos ha hace hacer haces hago han hasta incluso intenta intentais intentamos intentan intentar intentas intento ir la largo las lo los mientras mio modo muchos muy nos nosotros otro para pero podeis podemos poder podria por porque puedo quien sabe sabemos saben saber sabes ser si siendo sin sobre sois somos son soy su sus tal tambien tras tuyo un una unas uno unos usted ustedes va van vaya vive vives vivir yo ademas algun alguna algunas alguno algunos ambos bueno creo habia habian mismo mucho nuestra nuestro puede pueden siempre tanto tenemos tener tengo tiempo todo todos`,
	"it": `a ad al alla alle altri anche aveva avevano avete avevo bene che chi ci coi col come con contro cui da dagli dai dal dall dalla dalle degli dei del dell della delle di dov dove e ebbe ebbero ed era erano eravamo eravate eri ero faccia facciamo facciano faccio facciate faci fanno faranno fare farebbe farebbero farei faremo fareste faresti farete fatto fece fecero fui fummo furono foste fosti gli ha hanno ho i il in io la le lei li lo loro lui ma mi mia mie miei mio ne negl nei nel nell nella nelle no noi non nostra nostre nostri nostro o per perché più può qualche quella quelle quelli quello questa queste questi questo sa saranno sarà se sei si sia siamo siano siate siete sono sta stanno stata state stati stato su sua sue sugli sui sul sull sulla sulle suo suoi tra tu tua tue tuoi tuo un una uno vi voi vostra vostre vostri vostro abbiamo abbia avevamo avevate stiamo tutto tutti`,
}

var stopwordSets = func() map[string]map[string]bool {
	sets := make(map[string]map[string]bool, len(stopwordLists))
	for lang, list := range stopwordLists {
		words := strings.Fields(list)
		set := make(map[string]bool, len(words))
		for _, w := range words {
			set[w] = true
		}
		sets[lang] = set
	}
	return sets
}()

// Stopwords returns the stopword set for lang, falling back to the default
// language for unknown codes.
func Stopwords(lang string) map[string]bool {
	if set, ok := stopwordSets[lang]; ok {
		return set
	}
	return stopwordSets[DefaultLanguage]
}

// Languages lists the supported language codes.
func Languages() []string {
	langs := make([]string, 0, len(stopwordSets))
	for lang := range stopwordSets {
		langs = append(langs, lang)
	}
	return langs
}
