// Package triviaduel 提供了一個雙人即時對戰問答遊戲服務器。
//
// 實現了以國旗問答為題材的 1v1 拉鋸戰遊戲，包含以下核心功能：
//
// 房間管理系統
//
// 提供完整的房間生命週期管理：
//   - 房間創建與加入（兩人滿員自動開局）
//   - 狀態機驅動：等待、倒數、遊戲中、暫停、結束
//   - 遊戲結束後延遲清理
//   - 閒置房間自動回收
//
// # 回合制對戰
//
// 每回合出一道國旗選擇題：
//   - 3 秒開局倒數後進入第一回合
//   - 每回合 10 秒，每秒廣播剩餘時間
//   - 先答者鎖定回合，答對者將拉鋸游標推向對手
//   - 游標抵達任一端即分出勝負
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 支援心跳檢測（Ping/Pong）
//   - 訊息廣播與單播
//   - 斷線寬限期與重連恢復
//   - 連接狀態管理
//
// 併發安全設計
//
// 採用了多層次的併發控制策略：
//   - 管理器層讀寫鎖保護房間索引
//   - 房間層互斥鎖保護回合狀態
//   - 回合計時器以 channel 實現冪等取消
//   - 每房間至多一個存活計時器
//
// 斷線與重連
//
// 玩家斷線後遊戲暫停並進入寬限期：
//   - 對手收到斷線通知，房間進入暫停狀態
//   - 寬限期內重連則恢復遊戲並開始新回合
//   - 寬限期逾時則銷毀房間並通知對手
//
// 使用範例
//
// 啟動服務器：
//
//	players := internal.NewPlayerRegistry()
//	sessions := internal.NewSessionRegistry(logger)
//	bank, _ := internal.NewFlagBank(time.Now().UnixNano())
//	manager := internal.NewManager(players, sessions, bank, internal.DefaultTimings(), logger)
//	hub := internal.NewHub(manager, players, sessions, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", internal.NewHandler(manager, players, logger).Routes())
//	mux.HandleFunc("GET /ws/game", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// 客戶端連接：
//
//	ws, err := websocket.Dial("ws://localhost:8080/ws/game?playerId=123", "", "http://localhost/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ws.Close()
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Handler 層：處理玩家帳號與房間查詢的 HTTP 請求
//   - Manager 層：編排房間、回合與斷線恢復邏輯
//   - WebSocket 層：處理即時通訊與訊息分發
//   - Room 層：封裝房間狀態機與回合記錄
//   - Game 層：封裝拉鋸戰規則與勝負判定
//
// 每層都有明確的職責邊界，透過介面進行交互，便於測試與擴展。
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 8080，可由 PORT 環境變數覆蓋）
//   - -seed：題庫隨機種子（預設使用當前時間）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 監控與除錯
//
// 內建基本的監控機制：
//   - 結構化日誌記錄
//   - /health 健康檢查端點
//   - /stats 運行統計端點
package triviaduel
