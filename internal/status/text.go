package status

import (
	"fmt"

	"github.com/sweeney/tank-controller/internal/logic"
)

// phrases holds the display strings of one language.
type phrases struct {
	Name          string
	WaterLevel    string
	InletOn       string
	OutletOn      string
	PumpsOK       string
	CriticalError string
	SensorTimeout string
	CommError     string
	InvalidData   string
	PumpTimeout   string
	UnknownError  string
}

// languages is indexed by the persisted language index.
var languages = [...]phrases{
	{"Polski", "Poziom wody:", "Wlew ON", "Wylew ON", "Pompy: OK", "Błąd krytyczny!", "Timeout czuj.", "Błąd komunik.", "Nieprawidl. dane", "Timeout pompy", "Nieznany błąd"},
	{"English", "Water Level:", "Inlet Pump ON", "Outlet Pump ON", "Pumps: OK", "CRITICAL ERROR", "Sensor Timeout", "Comm Error", "Invalid Data", "Pump Timeout", "Unknown Error"},
	{"Русский", "Уровень воды:", "Вход. насос ВКЛ", "Выход. насос ВКЛ", "Насосы OK", "КРИТ. ОШИБКА", "Таймаут сенсора", "Ошиб. связи", "Невер. данные", "Таймаут насоса", "Неизв. ошибка"},
	{"Deutsch", "Wasserstand:", "Zulauf Pumpe AN", "Ablauf Pumpe AN", "Pumpen OK", "KRIT. FEHLER", "Sensor Timeout", "Komm. Fehler", "Ungültige Daten", "Pumpen Timeout", "Unbek. Fehler"},
	{"Français", "Niveau d'eau:", "Entrée pompe A", "Sortie pompe A", "Pompes OK", "ERREUR CRITIQ", "Timeout capteur", "Erreur communic.", "Données inval.", "Timeout pompe", "Erreur inconnue"},
	{"Español", "Nivel de agua:", "Bomba entrada A", "Bomba salida A", "Bombas OK", "ERROR CRÍTICO", "Timeout sensor", "Error de com.", "Datos inválidos", "Timeout bomba", "Error desconoc."},
	{"Italiano", "Livello acqua:", "Pomp. ingresso A", "Pomp. uscita A", "Pompe OK", "ERRORE CRITICO", "Timeout sensore", "Errore comunic.", "Dati non validi", "Timeout pompa", "Errore sconosciu"},
	{"Português", "Nível de água:", "Bomba entrada A", "Bomba saída A", "Bombas OK", "ERRO CRÍTICO", "Timeout sensor", "Erro de com.", "Dados inválidos", "Timeout bomba", "Erro desconoc."},
	{"Türkçe", "Su Seviyesi:", "Giriş Pomp. A", "Çıkış Pomp. A", "Pompalar OK", "KRİTİK HATA", "Sensör Timeout", "Hata.İletişim", "Geçersiz Veri", "Pompa Timeout", "Bilinmeyen Hata"},
	{"Čeština", "Hladina vody:", "Vstupní čerp. A", "Výstupní čer. A", "Čerpadla OK", "KRIT. CHYBA", "Timeout čidla", "Chyba komunik.", "Neplatná data", "Timeout čerpadla", "Neznámá chyba"},
}

func lang(index int) phrases {
	if index < 0 || index >= len(languages) {
		return languages[1]
	}
	return languages[index]
}

// LanguageName returns the display name of a language index.
func LanguageName(index int) string {
	return lang(index).Name
}

// Lines renders the two status display lines for a poll result: the level
// and pump activity, or an error title and the error kind.
func Lines(res logic.Result, language int) (string, string) {
	p := lang(language)
	if res.Error != logic.ErrNone {
		return p.CriticalError, errorText(p, res.Error)
	}

	line1 := fmt.Sprintf("%s %d%%", p.WaterLevel, res.Level)
	switch {
	case res.InletActive:
		return line1, p.InletOn
	case res.OutletActive:
		return line1, p.OutletOn
	default:
		return line1, p.PumpsOK
	}
}

func errorText(p phrases, err logic.WaterError) string {
	switch err {
	case logic.ErrSensorTimeout:
		return p.SensorTimeout
	case logic.ErrSensorComm:
		return p.CommError
	case logic.ErrSensorInvalidData:
		return p.InvalidData
	case logic.ErrPumpTimeout:
		return p.PumpTimeout
	default:
		return p.UnknownError
	}
}
