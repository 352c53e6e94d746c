package tag

// Name enumerates the closed set of tags exposed by the Table. The zero
// value is not a valid Name; use the exported constants.
type Name uint8

const (
	_ Name = iota

	// Inputs (written by the physics engine, read by the control engine).

	// BStartPB is the momentary start pushbutton.
	BStartPB
	// BStopPB is the normally-closed stop pushbutton (healthy = true).
	BStopPB
	// BEStop is the normally-closed e-stop loop (healthy = true).
	BEStop
	// BModeSelector selects manual (true) vs auto (false) mode.
	BModeSelector
	// BInfeedPE is the infeed photoeye.
	BInfeedPE
	// BDiverterPE is the diverter photoeye.
	BDiverterPE
	// BOutfeedBPE is the accept-lane outfeed photoeye.
	BOutfeedBPE
	// BOutfeedCPE is the reject-lane outfeed photoeye.
	BOutfeedCPE

	// Outputs (written by the control engine).

	// BConveyorMotor drives the belt motor.
	BConveyorMotor
	// BDiverterActuator extends the reject diverter gate.
	BDiverterActuator
	// BAlarmBuzzer sounds during FAULT.
	BAlarmBuzzer
	// BStatusGreen is the green status lamp.
	BStatusGreen
	// BStatusRed is the red status lamp.
	BStatusRed

	// HMI one-shot commands (consumed at end-of-scan).

	// BHMIStart is a one-shot start command.
	BHMIStart
	// BHMIStop is a one-shot stop command.
	BHMIStop
	// BHMIFaultClear is a one-shot fault-clear command.
	BHMIFaultClear
	// BHMIJogFwd is held (not one-shot) while jogging forward in manual mode.
	BHMIJogFwd

	// Status (control -> HMI).

	// IHMIState mirrors control.State as an integer (0..3).
	IHMIState
	// SHMIFaultMsg is the literal fault message string.
	SHMIFaultMsg
	// RHMIBoxCount is the completed box count.
	RHMIBoxCount
	// RHMIAvgCycleTime is the average cycle time, rounded to 2 decimals.
	RHMIAvgCycleTime
	// RHMIJamCount is the number of jam-latch events.
	RHMIJamCount
	// RHMIThroughput is completed boxes per hour of RUNNING time, rounded to
	// 1 decimal.
	RHMIThroughput

	// Parameters.

	// RJamTimeoutSec is the jam-timer threshold, in seconds.
	RJamTimeoutSec
	// RConveyorSpeed is the belt speed setpoint multiplier.
	RConveyorSpeed

	numNames
)

var kinds = [numNames]Kind{
	BStartPB:          KindBool,
	BStopPB:           KindBool,
	BEStop:            KindBool,
	BModeSelector:     KindBool,
	BInfeedPE:         KindBool,
	BDiverterPE:       KindBool,
	BOutfeedBPE:       KindBool,
	BOutfeedCPE:       KindBool,
	BConveyorMotor:    KindBool,
	BDiverterActuator: KindBool,
	BAlarmBuzzer:      KindBool,
	BStatusGreen:      KindBool,
	BStatusRed:        KindBool,
	BHMIStart:         KindBool,
	BHMIStop:          KindBool,
	BHMIFaultClear:    KindBool,
	BHMIJogFwd:        KindBool,
	IHMIState:         KindInt,
	SHMIFaultMsg:      KindString,
	RHMIBoxCount:      KindInt,
	RHMIAvgCycleTime:  KindReal,
	RHMIJamCount:      KindInt,
	RHMIThroughput:    KindReal,
	RJamTimeoutSec:    KindReal,
	RConveyorSpeed:    KindReal,
}

var names = [numNames]string{
	BStartPB:          "bStartPB",
	BStopPB:           "bStopPB",
	BEStop:            "bEStop",
	BModeSelector:     "bModeSelector",
	BInfeedPE:         "bInfeedPE",
	BDiverterPE:       "bDiverterPE",
	BOutfeedBPE:       "bOutfeedBPE",
	BOutfeedCPE:       "bOutfeedCPE",
	BConveyorMotor:    "bConveyorMotor",
	BDiverterActuator: "bDiverterActuator",
	BAlarmBuzzer:      "bAlarmBuzzer",
	BStatusGreen:      "bStatusGreen",
	BStatusRed:        "bStatusRed",
	BHMIStart:         "bHMI_Start",
	BHMIStop:          "bHMI_Stop",
	BHMIFaultClear:    "bHMI_FaultClear",
	BHMIJogFwd:        "bHMI_JogFwd",
	IHMIState:         "iHMI_State",
	SHMIFaultMsg:      "sHMI_FaultMsg",
	RHMIBoxCount:      "rHMI_BoxCount",
	RHMIAvgCycleTime:  "rHMI_AvgCycleTime",
	RHMIJamCount:      "rHMI_JamCount",
	RHMIThroughput:    "rHMI_Throughput",
	RJamTimeoutSec:    "rJamTimeoutSec",
	RConveyorSpeed:    "rConveyorSpeed",
}

// oneShot is the consume-on-scan command set (see package doc).
var oneShot = map[Name]bool{
	BHMIStart:      true,
	BHMIStop:       true,
	BHMIFaultClear: true,
}

// IsValid reports whether n is one of the enumerated tag names.
func (n Name) IsValid() bool { return n > 0 && n < numNames }

// Kind returns the declared scalar type for n. It returns KindBool for an
// invalid Name.
func (n Name) Kind() Kind {
	if !n.IsValid() {
		return KindBool
	}
	return kinds[n]
}

// String returns the wire/config name, e.g. "bInfeedPE".
func (n Name) String() string {
	if !n.IsValid() {
		return "tag.Name(invalid)"
	}
	return names[n]
}

// Lookup resolves a wire/config name (e.g. "bInfeedPE") to its Name.
func Lookup(s string) (Name, bool) {
	for i := Name(1); i < numNames; i++ {
		if names[i] == s {
			return i, true
		}
	}
	return 0, false
}

// IsOneShot reports whether n follows the consume-on-scan convention.
func (n Name) IsOneShot() bool { return oneShot[n] }
