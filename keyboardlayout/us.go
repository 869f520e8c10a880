package keyboardlayout

// US keyboard layout.
// Key definitions are keyed by their physical key code. Valid key inputs are
// derived from the definitions, so a key can be referred to by its code
// ("KeyA"), its value ("a") or its shifted value ("A").
func initUS() {
	keys := map[KeyInput]KeyDefinition{
		"Escape":         {Code: "Escape", Key: "Escape", KeyCode: 27},
		"F1":             {Code: "F1", Key: "F1", KeyCode: 112},
		"F2":             {Code: "F2", Key: "F2", KeyCode: 113},
		"F3":             {Code: "F3", Key: "F3", KeyCode: 114},
		"F4":             {Code: "F4", Key: "F4", KeyCode: 115},
		"F5":             {Code: "F5", Key: "F5", KeyCode: 116},
		"F6":             {Code: "F6", Key: "F6", KeyCode: 117},
		"F7":             {Code: "F7", Key: "F7", KeyCode: 118},
		"F8":             {Code: "F8", Key: "F8", KeyCode: 119},
		"F9":             {Code: "F9", Key: "F9", KeyCode: 120},
		"F10":            {Code: "F10", Key: "F10", KeyCode: 121},
		"F11":            {Code: "F11", Key: "F11", KeyCode: 122},
		"F12":            {Code: "F12", Key: "F12", KeyCode: 123},
		"Backquote":      {Code: "Backquote", Key: "`", ShiftKey: "~", KeyCode: 192},
		"Digit1":         {Code: "Digit1", Key: "1", ShiftKey: "!", KeyCode: 49},
		"Digit2":         {Code: "Digit2", Key: "2", ShiftKey: "@", KeyCode: 50},
		"Digit3":         {Code: "Digit3", Key: "3", ShiftKey: "#", KeyCode: 51},
		"Digit4":         {Code: "Digit4", Key: "4", ShiftKey: "$", KeyCode: 52},
		"Digit5":         {Code: "Digit5", Key: "5", ShiftKey: "%", KeyCode: 53},
		"Digit6":         {Code: "Digit6", Key: "6", ShiftKey: "^", KeyCode: 54},
		"Digit7":         {Code: "Digit7", Key: "7", ShiftKey: "&", KeyCode: 55},
		"Digit8":         {Code: "Digit8", Key: "8", ShiftKey: "*", KeyCode: 56},
		"Digit9":         {Code: "Digit9", Key: "9", ShiftKey: "(", KeyCode: 57},
		"Digit0":         {Code: "Digit0", Key: "0", ShiftKey: ")", KeyCode: 48},
		"Minus":          {Code: "Minus", Key: "-", ShiftKey: "_", KeyCode: 189},
		"Equal":          {Code: "Equal", Key: "=", ShiftKey: "+", KeyCode: 187},
		"Backspace":      {Code: "Backspace", Key: "Backspace", KeyCode: 8},
		"Tab":            {Code: "Tab", Key: "Tab", KeyCode: 9},
		"KeyQ":           {Code: "KeyQ", Key: "q", ShiftKey: "Q", KeyCode: 81},
		"KeyW":           {Code: "KeyW", Key: "w", ShiftKey: "W", KeyCode: 87},
		"KeyE":           {Code: "KeyE", Key: "e", ShiftKey: "E", KeyCode: 69},
		"KeyR":           {Code: "KeyR", Key: "r", ShiftKey: "R", KeyCode: 82},
		"KeyT":           {Code: "KeyT", Key: "t", ShiftKey: "T", KeyCode: 84},
		"KeyY":           {Code: "KeyY", Key: "y", ShiftKey: "Y", KeyCode: 89},
		"KeyU":           {Code: "KeyU", Key: "u", ShiftKey: "U", KeyCode: 85},
		"KeyI":           {Code: "KeyI", Key: "i", ShiftKey: "I", KeyCode: 73},
		"KeyO":           {Code: "KeyO", Key: "o", ShiftKey: "O", KeyCode: 79},
		"KeyP":           {Code: "KeyP", Key: "p", ShiftKey: "P", KeyCode: 80},
		"BracketLeft":    {Code: "BracketLeft", Key: "[", ShiftKey: "{", KeyCode: 219},
		"BracketRight":   {Code: "BracketRight", Key: "]", ShiftKey: "}", KeyCode: 221},
		"Backslash":      {Code: "Backslash", Key: "\\", ShiftKey: "|", KeyCode: 220},
		"CapsLock":       {Code: "CapsLock", Key: "CapsLock", KeyCode: 20},
		"KeyA":           {Code: "KeyA", Key: "a", ShiftKey: "A", KeyCode: 65},
		"KeyS":           {Code: "KeyS", Key: "s", ShiftKey: "S", KeyCode: 83},
		"KeyD":           {Code: "KeyD", Key: "d", ShiftKey: "D", KeyCode: 68},
		"KeyF":           {Code: "KeyF", Key: "f", ShiftKey: "F", KeyCode: 70},
		"KeyG":           {Code: "KeyG", Key: "g", ShiftKey: "G", KeyCode: 71},
		"KeyH":           {Code: "KeyH", Key: "h", ShiftKey: "H", KeyCode: 72},
		"KeyJ":           {Code: "KeyJ", Key: "j", ShiftKey: "J", KeyCode: 74},
		"KeyK":           {Code: "KeyK", Key: "k", ShiftKey: "K", KeyCode: 75},
		"KeyL":           {Code: "KeyL", Key: "l", ShiftKey: "L", KeyCode: 76},
		"Semicolon":      {Code: "Semicolon", Key: ";", ShiftKey: ":", KeyCode: 186},
		"Quote":          {Code: "Quote", Key: "'", ShiftKey: "\"", KeyCode: 222},
		"Enter":          {Code: "Enter", Key: "Enter", KeyCode: 13, Text: "\r"},
		"ShiftLeft":      {Code: "ShiftLeft", Key: "Shift", KeyCode: 16, Location: 1},
		"KeyZ":           {Code: "KeyZ", Key: "z", ShiftKey: "Z", KeyCode: 90},
		"KeyX":           {Code: "KeyX", Key: "x", ShiftKey: "X", KeyCode: 88},
		"KeyC":           {Code: "KeyC", Key: "c", ShiftKey: "C", KeyCode: 67},
		"KeyV":           {Code: "KeyV", Key: "v", ShiftKey: "V", KeyCode: 86},
		"KeyB":           {Code: "KeyB", Key: "b", ShiftKey: "B", KeyCode: 66},
		"KeyN":           {Code: "KeyN", Key: "n", ShiftKey: "N", KeyCode: 78},
		"KeyM":           {Code: "KeyM", Key: "m", ShiftKey: "M", KeyCode: 77},
		"Comma":          {Code: "Comma", Key: ",", ShiftKey: "<", KeyCode: 188},
		"Period":         {Code: "Period", Key: ".", ShiftKey: ">", KeyCode: 190},
		"Slash":          {Code: "Slash", Key: "/", ShiftKey: "?", KeyCode: 191},
		"ShiftRight":     {Code: "ShiftRight", Key: "Shift", KeyCode: 16, Location: 2},
		"ControlLeft":    {Code: "ControlLeft", Key: "Control", KeyCode: 17, Location: 1},
		"MetaLeft":       {Code: "MetaLeft", Key: "Meta", KeyCode: 91, Location: 1},
		"AltLeft":        {Code: "AltLeft", Key: "Alt", KeyCode: 18, Location: 1},
		"Space":          {Code: "Space", Key: " ", KeyCode: 32},
		"AltRight":       {Code: "AltRight", Key: "Alt", KeyCode: 18, Location: 2},
		"MetaRight":      {Code: "MetaRight", Key: "Meta", KeyCode: 92, Location: 2},
		"ContextMenu":    {Code: "ContextMenu", Key: "ContextMenu", KeyCode: 93},
		"ControlRight":   {Code: "ControlRight", Key: "Control", KeyCode: 17, Location: 2},
		"PrintScreen":    {Code: "PrintScreen", Key: "PrintScreen", KeyCode: 44},
		"ScrollLock":     {Code: "ScrollLock", Key: "ScrollLock", KeyCode: 145},
		"Pause":          {Code: "Pause", Key: "Pause", KeyCode: 19},
		"Insert":         {Code: "Insert", Key: "Insert", KeyCode: 45},
		"Home":           {Code: "Home", Key: "Home", KeyCode: 36},
		"PageUp":         {Code: "PageUp", Key: "PageUp", KeyCode: 33},
		"Delete":         {Code: "Delete", Key: "Delete", KeyCode: 46},
		"End":            {Code: "End", Key: "End", KeyCode: 35},
		"PageDown":       {Code: "PageDown", Key: "PageDown", KeyCode: 34},
		"ArrowUp":        {Code: "ArrowUp", Key: "ArrowUp", KeyCode: 38},
		"ArrowLeft":      {Code: "ArrowLeft", Key: "ArrowLeft", KeyCode: 37},
		"ArrowDown":      {Code: "ArrowDown", Key: "ArrowDown", KeyCode: 40},
		"ArrowRight":     {Code: "ArrowRight", Key: "ArrowRight", KeyCode: 39},
		"NumLock":        {Code: "NumLock", Key: "NumLock", KeyCode: 144},
		"NumpadDivide":   {Code: "NumpadDivide", Key: "/", KeyCode: 111, Location: 3},
		"NumpadMultiply": {Code: "NumpadMultiply", Key: "*", KeyCode: 106, Location: 3},
		"NumpadSubtract": {Code: "NumpadSubtract", Key: "-", KeyCode: 109, Location: 3},
		"Numpad7":        {Code: "Numpad7", Key: "Home", ShiftKey: "7", KeyCode: 36, ShiftKeyCode: 103, Location: 3},
		"Numpad8":        {Code: "Numpad8", Key: "ArrowUp", ShiftKey: "8", KeyCode: 38, ShiftKeyCode: 104, Location: 3},
		"Numpad9":        {Code: "Numpad9", Key: "PageUp", ShiftKey: "9", KeyCode: 33, ShiftKeyCode: 105, Location: 3},
		"NumpadAdd":      {Code: "NumpadAdd", Key: "+", KeyCode: 107, Location: 3},
		"Numpad4":        {Code: "Numpad4", Key: "ArrowLeft", ShiftKey: "4", KeyCode: 37, ShiftKeyCode: 100, Location: 3},
		"Numpad5":        {Code: "Numpad5", Key: "Clear", ShiftKey: "5", KeyCode: 12, ShiftKeyCode: 101, Location: 3},
		"Numpad6":        {Code: "Numpad6", Key: "ArrowRight", ShiftKey: "6", KeyCode: 39, ShiftKeyCode: 102, Location: 3},
		"Numpad1":        {Code: "Numpad1", Key: "End", ShiftKey: "1", KeyCode: 35, ShiftKeyCode: 97, Location: 3},
		"Numpad2":        {Code: "Numpad2", Key: "ArrowDown", ShiftKey: "2", KeyCode: 40, ShiftKeyCode: 98, Location: 3},
		"Numpad3":        {Code: "Numpad3", Key: "PageDown", ShiftKey: "3", KeyCode: 34, ShiftKeyCode: 99, Location: 3},
		"Numpad0":        {Code: "Numpad0", Key: "Insert", ShiftKey: "0", KeyCode: 45, ShiftKeyCode: 96, Location: 3},
		"NumpadDecimal":  {Code: "NumpadDecimal", Key: "Delete", ShiftKey: ".", KeyCode: 46, ShiftKeyCode: 110, Location: 3},
		"NumpadEnter":    {Code: "NumpadEnter", Key: "Enter", KeyCode: 13, Text: "\r", Location: 3},
	}

	validKeys := make(map[KeyInput]bool, len(keys)*3)
	for code, d := range keys {
		validKeys[code] = true
		if d.Key != "" {
			validKeys[KeyInput(d.Key)] = true
		}
		if d.ShiftKey != "" {
			validKeys[KeyInput(d.ShiftKey)] = true
		}
	}

	register("us", validKeys, keys)
}
